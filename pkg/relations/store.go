package relations

import (
	"context"

	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// Store is the persistence the engine needs. WithTx runs fn inside a single
// transaction that is committed only when fn returns nil.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetTemplate(ctx context.Context, id int64) (*template.Template, error)
}

// Tx is the set of writes and reads the engine performs inside a transaction.
type Tx interface {
	InsertTemplate(ctx context.Context, t *template.Template) error
	InsertTemplatePart(ctx context.Context, p *template.Part) error
	UpdateTemplatePartRelations(ctx context.Context, p *template.Part) error

	InsertRelationSet(ctx context.Context, rs *model.RelationSet) error
	UpdateRelationSet(ctx context.Context, rs *model.RelationSet) error
	InsertRelation(ctx context.Context, r *model.Relation) error

	InsertTextPosition(ctx context.Context, p *model.TextPosition) error
	InsertAppellation(ctx context.Context, a *model.Appellation) error
	InsertDateAppellation(ctx context.Context, d *model.DateAppellation) error
	GetAppellation(ctx context.Context, id int64) (*model.Appellation, error)
	GetDateAppellation(ctx context.Context, id int64) (*model.DateAppellation, error)

	GetConcept(ctx context.Context, id int64) (*model.Concept, error)
	GetOrCreateConcept(ctx context.Context, uri, label string) (*model.Concept, error)
}

// ConceptSpec names a concept by URI, with the label used when it has to be
// created.
type ConceptSpec struct {
	URI   string
	Label string
}

// Concepts are the well-known concepts the engine binds predicates to.
type Concepts struct {
	Is    ConceptSpec
	Has   ConceptSpec
	Start ConceptSpec
	End   ConceptSpec
	Occur ConceptSpec
}
