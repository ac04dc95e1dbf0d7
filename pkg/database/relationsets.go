package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/diging/vogon-web-sub000/pkg/model"
)

func insertRelationSet(ctx context.Context, q queryer, rs *model.RelationSet) error {
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO relation_sets (template_id, created_by, text_id, project_id, expression, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullInt64(rs.TemplateID), rs.CreatedBy, rs.TextID, rs.ProjectID, rs.Expression, rs.CreatedAt,
	)
	if err != nil {
		return err
	}
	rs.ID, err = res.LastInsertId()
	return err
}

// updateRelationSet writes the expression and replaces the terminal nodes.
func updateRelationSet(ctx context.Context, q queryer, rs *model.RelationSet) error {
	if _, err := q.ExecContext(ctx,
		"UPDATE relation_sets SET expression = ? WHERE id = ?", rs.Expression, rs.ID,
	); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM relation_set_terminal_nodes WHERE relation_set_id = ?", rs.ID,
	); err != nil {
		return err
	}
	for i, c := range rs.TerminalNodes {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO relation_set_terminal_nodes (relation_set_id, concept_id, position)
			 VALUES (?, ?, ?)`, rs.ID, c.ID, i,
		); err != nil {
			return fmt.Errorf("terminal node %d: %w", c.ID, err)
		}
	}
	return nil
}

func insertRelation(ctx context.Context, q queryer, r *model.Relation) error {
	if !r.Source.Valid() || !r.Object.Valid() {
		return fmt.Errorf("relation needs a valid source and object, got %s and %s", r.Source, r.Object)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO relations
			(part_of, template_part_id, source_kind, source_id, predicate_id, object_kind, object_id,
			 created_by, text_id, project_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PartOf, nullInt64(r.TemplatePartID), string(r.Source.Kind), r.Source.ID, r.PredicateID,
		string(r.Object.Kind), r.Object.ID, r.CreatedBy, r.TextID, r.ProjectID, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

const relationSetColumns = `id, template_id, created_by, text_id, project_id, expression, submitted, submitted_on, created_at`

func scanRelationSet(row rowScanner) (*model.RelationSet, error) {
	var (
		rs          model.RelationSet
		templateID  sql.NullInt64
		submittedOn sql.NullTime
	)
	if err := row.Scan(&rs.ID, &templateID, &rs.CreatedBy, &rs.TextID, &rs.ProjectID,
		&rs.Expression, &rs.Submitted, &submittedOn, &rs.CreatedAt); err != nil {
		return nil, err
	}
	rs.TemplateID = int64Ptr(templateID)
	if submittedOn.Valid {
		t := submittedOn.Time
		rs.SubmittedOn = &t
	}
	rs.TerminalNodes = []model.Concept{}
	return &rs, nil
}

// GetRelationSet loads a relation set with its relations and terminal
// concepts.
func (db *DB) GetRelationSet(ctx context.Context, id int64) (*model.RelationSet, error) {
	rs, err := scanRelationSet(db.conn.QueryRowContext(ctx,
		"SELECT "+relationSetColumns+" FROM relation_sets WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "relation set", id)
	}

	if rs.Relations, err = db.relationsOf(ctx, id); err != nil {
		return nil, err
	}
	if rs.TerminalNodes, err = db.terminalNodesOf(ctx, id); err != nil {
		return nil, err
	}
	return rs, nil
}

func (db *DB) relationsOf(ctx context.Context, setID int64) ([]model.Relation, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, part_of, template_part_id, source_kind, source_id, predicate_id, object_kind, object_id,
			created_by, text_id, project_id, created_at
		FROM relations WHERE part_of = ? ORDER BY id`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Relation{}
	for rows.Next() {
		var (
			r                      model.Relation
			partID                 sql.NullInt64
			sourceKind, objectKind string
		)
		if err := rows.Scan(&r.ID, &r.PartOf, &partID, &sourceKind, &r.Source.ID, &r.PredicateID,
			&objectKind, &r.Object.ID, &r.CreatedBy, &r.TextID, &r.ProjectID, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TemplatePartID = int64Ptr(partID)
		r.Source.Kind = model.NodeKind(sourceKind)
		r.Object.Kind = model.NodeKind(objectKind)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) terminalNodesOf(ctx context.Context, setID int64) ([]model.Concept, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT c.id, c.uri, c.label, c.type_id, c.created_at
		FROM relation_set_terminal_nodes tn
		JOIN concepts c ON c.id = tn.concept_id
		WHERE tn.relation_set_id = ?
		ORDER BY tn.position`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Concept{}
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListRelationSets returns relation sets, newest first, without their
// relations.
func (db *DB) ListRelationSets(ctx context.Context, f RelationSetFilter) ([]model.RelationSet, error) {
	query := "SELECT " + relationSetColumns + " FROM relation_sets WHERE 1 = 1"
	args := []any{}
	if f.TextID != 0 {
		query += " AND text_id = ?"
		args = append(args, f.TextID)
	}
	if f.ProjectID != 0 {
		query += " AND project_id = ?"
		args = append(args, f.ProjectID)
	}
	if f.Submitted != nil {
		query += " AND submitted = ?"
		args = append(args, *f.Submitted)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RelationSet{}
	for rows.Next() {
		rs, err := scanRelationSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rs)
	}
	return out, rows.Err()
}

// SubmitRelationSet marks a relation set as submitted. Submitting twice keeps
// the first submission time.
func (db *DB) SubmitRelationSet(ctx context.Context, id int64) (*model.RelationSet, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE relation_sets SET submitted = 1, submitted_on = COALESCE(submitted_on, ?) WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("relation set %d: %w", id, ErrNotFound)
	}
	db.logger.Info("relation set submitted", slog.Int64("relation_set_id", id))
	return db.GetRelationSet(ctx, id)
}
