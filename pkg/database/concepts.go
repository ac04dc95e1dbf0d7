package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diging/vogon-web-sub000/pkg/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

const conceptColumns = "id, uri, label, type_id, created_at"

func scanConcept(row rowScanner) (*model.Concept, error) {
	var (
		c      model.Concept
		typeID sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.URI, &c.Label, &typeID, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.TypeID = int64Ptr(typeID)
	return &c, nil
}

func insertConcept(ctx context.Context, q queryer, c *model.Concept) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO concepts (uri, label, type_id, created_at) VALUES (?, ?, ?, ?)",
		c.URI, c.Label, nullInt64(c.TypeID), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert concept %s: %w", c.URI, err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func getConcept(ctx context.Context, q queryer, id int64) (*model.Concept, error) {
	row := q.QueryRowContext(ctx, "SELECT "+conceptColumns+" FROM concepts WHERE id = ?", id)
	c, err := scanConcept(row)
	if err != nil {
		return nil, notFound(err, "concept", id)
	}
	return c, nil
}

func getConceptByURI(ctx context.Context, q queryer, uri string) (*model.Concept, error) {
	row := q.QueryRowContext(ctx, "SELECT "+conceptColumns+" FROM concepts WHERE uri = ?", uri)
	c, err := scanConcept(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("concept %s: %w", uri, ErrNotFound)
		}
		return nil, err
	}
	return c, nil
}

func (db *DB) CreateConceptType(ctx context.Context, uri, label string) (*model.ConceptType, error) {
	ct := &model.ConceptType{URI: uri, Label: label, CreatedAt: time.Now().UTC()}
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO concept_types (uri, label, created_at) VALUES (?, ?, ?)",
		ct.URI, ct.Label, ct.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert concept type %s: %w", uri, err)
	}
	if ct.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	db.logger.Debug("concept type created", slog.Int64("id", ct.ID), slog.String("uri", uri))
	return ct, nil
}

func (db *DB) GetConceptType(ctx context.Context, id int64) (*model.ConceptType, error) {
	var ct model.ConceptType
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, uri, label, created_at FROM concept_types WHERE id = ?", id,
	).Scan(&ct.ID, &ct.URI, &ct.Label, &ct.CreatedAt)
	if err != nil {
		return nil, notFound(err, "concept type", id)
	}
	return &ct, nil
}

// CreateConcept inserts a concept. typeID may be nil.
func (db *DB) CreateConcept(ctx context.Context, uri, label string, typeID *int64) (*model.Concept, error) {
	c := &model.Concept{URI: uri, Label: label, TypeID: typeID}
	if err := insertConcept(ctx, db.conn, c); err != nil {
		return nil, err
	}
	db.concepts.Add(c.URI, *c)
	db.logger.Debug("concept created", slog.Int64("id", c.ID), slog.String("uri", uri))
	return c, nil
}

func (db *DB) GetConcept(ctx context.Context, id int64) (*model.Concept, error) {
	return getConcept(ctx, db.conn, id)
}

// GetConceptByURI serves from the concept cache when it can.
func (db *DB) GetConceptByURI(ctx context.Context, uri string) (*model.Concept, error) {
	if c, ok := db.concepts.Get(uri); ok {
		return &c, nil
	}
	c, err := getConceptByURI(ctx, db.conn, uri)
	if err != nil {
		return nil, err
	}
	db.concepts.Add(uri, *c)
	return c, nil
}
