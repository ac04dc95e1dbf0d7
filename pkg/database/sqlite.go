package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/relations"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTemplateInUse is returned when deleting a template that relation
	// sets were built from.
	ErrTemplateInUse = errors.New("template is used by relation sets")
)

const DefaultConceptCacheSize = 256

type DB struct {
	conn     *sql.DB
	logger   *slog.Logger
	concepts *lru.Cache[string, model.Concept]
}

var _ relations.Store = (*DB)(nil)

// Option configures a DB.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithConceptCacheSize sets how many concepts are cached by URI.
func WithConceptCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

func NewDB(dbPath string, opts ...Option) (*DB, error) {
	return NewDBWithLogger(dbPath, slog.Default(), opts...)
}

func NewDBWithLogger(dbPath string, logger *slog.Logger, opts ...Option) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{cacheSize: DefaultConceptCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cache, err := lru.New[string, model.Concept](o.cacheSize)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create concept cache: %w", err)
	}

	db := &DB{conn: conn, logger: logger, concepts: cache}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Debug("database opened", slog.String("path", dbPath), slog.Int("concept_cache", o.cacheSize))
	return db, nil
}

// dsn turns foreign keys on for every connection of the pool. Transactions
// take the write lock at BEGIN so concurrent writers wait on the busy timeout
// instead of failing a read-to-write lock upgrade with SQLITE_BUSY.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func roleColumns(prefix string) string {
	return fmt.Sprintf(`
			%[1]s_node_type TEXT NOT NULL,
			%[1]s_type_id INTEGER REFERENCES concept_types(id),
			%[1]s_concept_id INTEGER REFERENCES concepts(id),
			%[1]s_relation_internal_id INTEGER,
			%[1]s_relation_part_id INTEGER REFERENCES template_parts(id),
			%[1]s_prompt_text INTEGER NOT NULL DEFAULT 0,
			%[1]s_label TEXT NOT NULL DEFAULT '',
			%[1]s_description TEXT NOT NULL DEFAULT '',`, prefix)
}

func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS concept_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT UNIQUE NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS concepts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT UNIQUE NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			type_id INTEGER REFERENCES concept_types(id),
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS templates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			expression TEXT NOT NULL DEFAULT '',
			terminal_nodes TEXT NOT NULL DEFAULT '',
			created_by INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS template_parts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			part_of INTEGER NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
			internal_id INTEGER NOT NULL,` +
			roleColumns("source") +
			roleColumns("predicate") +
			roleColumns("object") + `
			UNIQUE(part_of, internal_id)
		);`,
		`CREATE TABLE IF NOT EXISTS text_positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text_id INTEGER NOT NULL,
			position_type TEXT NOT NULL,
			start_offset INTEGER,
			end_offset INTEGER,
			position_value TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS appellations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			interpretation_id INTEGER REFERENCES concepts(id),
			as_predicate INTEGER NOT NULL DEFAULT 0,
			token_ids TEXT NOT NULL DEFAULT '',
			string_rep TEXT NOT NULL DEFAULT '',
			position_id INTEGER REFERENCES text_positions(id),
			created_by INTEGER NOT NULL,
			text_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS date_appellations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL DEFAULT 0,
			day INTEGER NOT NULL DEFAULT 0,
			string_rep TEXT NOT NULL DEFAULT '',
			position_id INTEGER REFERENCES text_positions(id),
			created_by INTEGER NOT NULL,
			text_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS relation_sets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			template_id INTEGER REFERENCES templates(id),
			created_by INTEGER NOT NULL,
			text_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL DEFAULT 0,
			expression TEXT NOT NULL DEFAULT '',
			submitted INTEGER NOT NULL DEFAULT 0,
			submitted_on TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS relations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			part_of INTEGER NOT NULL REFERENCES relation_sets(id) ON DELETE CASCADE,
			template_part_id INTEGER REFERENCES template_parts(id),
			source_kind TEXT NOT NULL,
			source_id INTEGER NOT NULL,
			predicate_id INTEGER NOT NULL REFERENCES appellations(id),
			object_kind TEXT NOT NULL,
			object_id INTEGER NOT NULL,
			created_by INTEGER NOT NULL,
			text_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS relation_set_terminal_nodes (
			relation_set_id INTEGER NOT NULL REFERENCES relation_sets(id) ON DELETE CASCADE,
			concept_id INTEGER NOT NULL REFERENCES concepts(id),
			position INTEGER NOT NULL,
			PRIMARY KEY (relation_set_id, concept_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_type ON concepts(type_id);`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_label ON concepts(label);`,
		`CREATE INDEX IF NOT EXISTS idx_template_parts_template ON template_parts(part_of);`,
		`CREATE INDEX IF NOT EXISTS idx_relation_sets_template ON relation_sets(template_id);`,
		`CREATE INDEX IF NOT EXISTS idx_relation_sets_text ON relation_sets(text_id, project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_relations_part_of ON relations(part_of);`,
		`CREATE INDEX IF NOT EXISTS idx_appellations_text ON appellations(text_id);`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// WithTx runs fn in a transaction. Concepts created inside it become visible
// to the cache only once the transaction has committed.
func (db *DB) WithTx(ctx context.Context, fn func(tx relations.Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{tx: sqlTx, db: db}
	if err := fn(tx); err != nil {
		db.logger.Debug("transaction rolled back", slog.String("error", err.Error()))
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, c := range tx.created {
		db.concepts.Add(c.URI, c)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func notFound(err error, what string, id int64) error {
	if isNoRows(err) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return err
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
