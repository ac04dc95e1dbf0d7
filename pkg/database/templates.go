package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/diging/vogon-web-sub000/pkg/template"
)

var rolePrefixes = [...]string{"source", "predicate", "object"}

var roleFields = [...]string{
	"node_type", "type_id", "concept_id", "relation_internal_id",
	"relation_part_id", "prompt_text", "label", "description",
}

func partColumns() string {
	cols := []string{"id", "part_of", "internal_id"}
	for _, p := range rolePrefixes {
		for _, f := range roleFields {
			cols = append(cols, p+"_"+f)
		}
	}
	return strings.Join(cols, ", ")
}

func roleArgs(r *template.Role) []any {
	var typeID, conceptID *int64
	if r.Type != nil {
		typeID = &r.Type.ID
	}
	if r.Concept != nil {
		conceptID = &r.Concept.ID
	}
	return []any{
		string(r.NodeType), nullInt64(typeID), nullInt64(conceptID), nullInt(r.RelationInternalID),
		nullInt64(r.RelationPartID), r.PromptText, r.Label, r.Description,
	}
}

// roleScan holds the raw columns of one role while a part row is scanned.
type roleScan struct {
	nodeType                    string
	typeID, conceptID           sql.NullInt64
	relationInternal, relPartID sql.NullInt64
	prompt                      bool
	label, description          string
}

func (s *roleScan) dest() []any {
	return []any{&s.nodeType, &s.typeID, &s.conceptID, &s.relationInternal, &s.relPartID, &s.prompt, &s.label, &s.description}
}

func (s *roleScan) role() template.Role {
	r := template.Role{
		NodeType:           template.NodeType(s.nodeType),
		RelationInternalID: intPtr(s.relationInternal),
		RelationPartID:     int64Ptr(s.relPartID),
		PromptText:         s.prompt,
		Label:              s.label,
		Description:        s.description,
	}
	if s.typeID.Valid {
		r.Type = &template.Ref{ID: s.typeID.Int64}
	}
	if s.conceptID.Valid {
		r.Concept = &template.Ref{ID: s.conceptID.Int64}
	}
	return r
}

func insertTemplate(ctx context.Context, q queryer, t *template.Template) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO templates (name, description, expression, terminal_nodes, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Description, t.Expression, t.TerminalNodes, t.CreatedBy, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

func insertTemplatePart(ctx context.Context, q queryer, p *template.Part) error {
	cols := strings.SplitN(partColumns(), ", ", 2)[1]
	args := []any{p.TemplateID, p.InternalID}
	for _, f := range template.AllFields {
		args = append(args, roleArgs(p.Role(f))...)
	}
	res, err := q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO template_parts (%s) VALUES (%s)", cols, placeholders(len(args))),
		args...,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	return err
}

func updateTemplatePartRelations(ctx context.Context, q queryer, p *template.Part) error {
	_, err := q.ExecContext(ctx,
		"UPDATE template_parts SET source_relation_part_id = ?, object_relation_part_id = ? WHERE id = ?",
		nullInt64(p.Source.RelationPartID), nullInt64(p.Object.RelationPartID), p.ID,
	)
	return err
}

func scanTemplateParts(ctx context.Context, q queryer, templateID int64) ([]template.Part, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+partColumns()+" FROM template_parts WHERE part_of = ? ORDER BY id", templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parts := []template.Part{}
	for rows.Next() {
		var (
			p     template.Part
			roles [3]roleScan
		)
		dest := []any{&p.ID, &p.TemplateID, &p.InternalID}
		for i := range roles {
			dest = append(dest, roles[i].dest()...)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p.Source = roles[0].role()
		p.Predicate = roles[1].role()
		p.Object = roles[2].role()
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// resolveRefs fills in URI and label of the type and concept references.
func resolveRefs(ctx context.Context, q queryer, parts []template.Part) error {
	for i := range parts {
		for _, f := range template.AllFields {
			role := parts[i].Role(f)
			if role.Type != nil {
				err := q.QueryRowContext(ctx,
					"SELECT uri, label FROM concept_types WHERE id = ?", role.Type.ID,
				).Scan(&role.Type.URI, &role.Type.Label)
				if err != nil {
					return notFound(err, "concept type", role.Type.ID)
				}
			}
			if role.Concept != nil {
				err := q.QueryRowContext(ctx,
					"SELECT uri, label FROM concepts WHERE id = ?", role.Concept.ID,
				).Scan(&role.Concept.URI, &role.Concept.Label)
				if err != nil {
					return notFound(err, "concept", role.Concept.ID)
				}
			}
		}
	}
	return nil
}

// GetTemplate loads a template with its parts and resolved references.
func (db *DB) GetTemplate(ctx context.Context, id int64) (*template.Template, error) {
	var t template.Template
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description, expression, terminal_nodes, created_by
		 FROM templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Expression, &t.TerminalNodes, &t.CreatedBy)
	if err != nil {
		return nil, notFound(err, "template", id)
	}

	t.Parts, err = scanTemplateParts(ctx, db.conn, id)
	if err != nil {
		return nil, fmt.Errorf("load parts of template %d: %w", id, err)
	}
	if err := resolveRefs(ctx, db.conn, t.Parts); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns templates ordered by name. query, when not empty,
// filters on name and description.
func (db *DB) ListTemplates(ctx context.Context, query string) ([]TemplateSummary, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.expression,
			(SELECT COUNT(*) FROM template_parts p WHERE p.part_of = t.id),
			EXISTS (SELECT 1 FROM relation_sets rs WHERE rs.template_id = t.id)
		FROM templates t
		WHERE t.name LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\'
		ORDER BY t.name, t.id
	`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TemplateSummary{}
	for rows.Next() {
		var s TemplateSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Expression, &s.Parts, &s.InUse); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a template and its parts. Templates that relation
// sets were built from cannot be deleted.
func (db *DB) DeleteTemplate(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM templates WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return notFound(err, "template", id)
	}

	var used int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM relation_sets WHERE template_id = ?", id,
	).Scan(&used); err != nil {
		return err
	}
	if used > 0 {
		return fmt.Errorf("template %d: %w", id, ErrTemplateInUse)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM template_parts WHERE part_of = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.logger.Info("template deleted", slog.Int64("template_id", id))
	return nil
}
