package database

import (
	"context"
	"database/sql"

	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/relations"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// Tx is a relations.Tx backed by a SQLite transaction. Every read goes
// through the transaction so rows written earlier in it are visible.
type Tx struct {
	tx *sql.Tx
	db *DB

	// created holds concepts inserted by this transaction; they reach the
	// cache after commit.
	created []model.Concept
}

var _ relations.Tx = (*Tx)(nil)

func (t *Tx) InsertTemplate(ctx context.Context, tmpl *template.Template) error {
	return insertTemplate(ctx, t.tx, tmpl)
}

func (t *Tx) InsertTemplatePart(ctx context.Context, p *template.Part) error {
	return insertTemplatePart(ctx, t.tx, p)
}

func (t *Tx) UpdateTemplatePartRelations(ctx context.Context, p *template.Part) error {
	return updateTemplatePartRelations(ctx, t.tx, p)
}

func (t *Tx) InsertRelationSet(ctx context.Context, rs *model.RelationSet) error {
	return insertRelationSet(ctx, t.tx, rs)
}

func (t *Tx) UpdateRelationSet(ctx context.Context, rs *model.RelationSet) error {
	return updateRelationSet(ctx, t.tx, rs)
}

func (t *Tx) InsertRelation(ctx context.Context, r *model.Relation) error {
	return insertRelation(ctx, t.tx, r)
}

func (t *Tx) InsertTextPosition(ctx context.Context, p *model.TextPosition) error {
	return insertTextPosition(ctx, t.tx, p)
}

func (t *Tx) InsertAppellation(ctx context.Context, a *model.Appellation) error {
	return insertAppellation(ctx, t.tx, a)
}

func (t *Tx) InsertDateAppellation(ctx context.Context, d *model.DateAppellation) error {
	return insertDateAppellation(ctx, t.tx, d)
}

func (t *Tx) GetAppellation(ctx context.Context, id int64) (*model.Appellation, error) {
	return getAppellation(ctx, t.tx, id)
}

func (t *Tx) GetDateAppellation(ctx context.Context, id int64) (*model.DateAppellation, error) {
	return getDateAppellation(ctx, t.tx, id)
}

func (t *Tx) GetConcept(ctx context.Context, id int64) (*model.Concept, error) {
	return getConcept(ctx, t.tx, id)
}

// GetOrCreateConcept looks the concept up by URI, creating it with label when
// it does not exist yet.
func (t *Tx) GetOrCreateConcept(ctx context.Context, uri, label string) (*model.Concept, error) {
	if c, ok := t.db.concepts.Get(uri); ok {
		return &c, nil
	}
	for _, c := range t.created {
		if c.URI == uri {
			c := c
			return &c, nil
		}
	}

	c, err := getConceptByURI(ctx, t.tx, uri)
	if err == nil {
		t.db.concepts.Add(uri, *c)
		return c, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	c = &model.Concept{URI: uri, Label: label}
	if err := insertConcept(ctx, t.tx, c); err != nil {
		return nil, err
	}
	t.created = append(t.created, *c)
	return c, nil
}
