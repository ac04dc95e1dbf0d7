package database

import (
	"context"
	"strings"

	"github.com/diging/vogon-web-sub000/pkg/model"
)

const defaultSearchLimit = 50

// SearchConcepts matches concepts by label or URI. Label prefix matches rank
// ahead of other matches.
func (db *DB) SearchConcepts(ctx context.Context, q ConceptQuery) ([]model.Concept, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	pattern := "%" + escapeLike(q.Text) + "%"
	prefix := escapeLike(q.Text) + "%"
	query := `
		SELECT ` + conceptColumns + `
		FROM concepts
		WHERE (label LIKE ? ESCAPE '\' OR uri LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern}
	if q.TypeID != nil {
		query += ` AND type_id = ?`
		args = append(args, *q.TypeID)
	}
	query += `
		ORDER BY CASE WHEN label LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, label, id
		LIMIT ?`
	args = append(args, prefix, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	concepts := []model.Concept{}
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, *c)
	}
	return concepts, rows.Err()
}

// escapeLike escapes the LIKE wildcards so the text is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
