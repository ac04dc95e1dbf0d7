package relations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diging/vogon-web-sub000/internal/logging"
	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// value is the resolved content of one relation role.
type value struct {
	node        model.Node
	appellation *model.Appellation
	date        *model.DateAppellation
	relation    *resolved
}

// display is the text a value contributes to an expression. An appellation
// without an interpretation has no concept label and reports false.
func (v value) display() (string, bool) {
	switch v.node.Kind {
	case model.NodeAppellation:
		if v.appellation == nil || v.appellation.Interpretation == nil {
			return "", false
		}
		return v.appellation.Interpretation.Label, true
	case model.NodeDateAppellation:
		return v.date.DateRepresentation(), true
	}
	return fmt.Sprintf("relation %d", v.node.ID), true
}

func (v value) interpretation() *model.Concept {
	if v.node.Kind == model.NodeAppellation && v.appellation != nil {
		return v.appellation.Interpretation
	}
	return nil
}

// resolved is a persisted relation together with its role values.
type resolved struct {
	relation  *model.Relation
	source    value
	predicate value
	object    value
}

func (r *resolved) role(f template.Field) value {
	switch f {
	case template.FieldSource:
		return r.source
	case template.FieldPredicate:
		return r.predicate
	}
	return r.object
}

// instantiation holds the state of one CreateRelationSet call.
type instantiation struct {
	tx       Tx
	tmpl     *template.Template
	fields   map[template.SlotKey]FieldInput
	factory  *appellationFactory
	set      *model.RelationSet
	concepts Concepts

	byPart     map[int64]*resolved
	inProgress map[int64]bool
	byInternal map[int]*resolved
}

// CreateRelationSet instantiates the template with the annotator's evidence.
// Everything is written in one transaction; any error leaves nothing behind.
func (e *Engine) CreateRelationSet(ctx context.Context, templateID int64, in RelationSetInput, creator int64) (*model.RelationSet, error) {
	tmpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", templateID, err)
	}

	fields, err := checkRequired(tmpl, in.Fields)
	if err != nil {
		return nil, err
	}

	var set *model.RelationSet
	err = e.store.WithTx(ctx, func(tx Tx) error {
		set = &model.RelationSet{
			TemplateID:    &tmpl.ID,
			CreatedBy:     creator,
			TextID:        in.OccursIn,
			ProjectID:     in.Project,
			TerminalNodes: []model.Concept{},
		}
		if err := tx.InsertRelationSet(ctx, set); err != nil {
			return fmt.Errorf("insert relation set: %w", err)
		}

		run := &instantiation{
			tx:         tx,
			tmpl:       tmpl,
			fields:     fields,
			factory:    newAppellationFactory(tx, e.concepts, e.logger, creator, in.OccursIn, in.Project),
			set:        set,
			concepts:   e.concepts,
			byPart:     make(map[int64]*resolved),
			inProgress: make(map[int64]bool),
			byInternal: make(map[int]*resolved),
		}

		for i := range tmpl.Parts {
			if _, err := run.resolvePart(ctx, &tmpl.Parts[i]); err != nil {
				return err
			}
		}

		set.Expression = run.expression()
		set.TerminalNodes = run.terminalNodes()
		if err := tx.UpdateRelationSet(ctx, set); err != nil {
			return fmt.Errorf("update relation set: %w", err)
		}

		return run.attachTemporal(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	logging.LoggerWithContext(ctx, e.logger).Info("relation set created",
		slog.Int64("relation_set_id", set.ID),
		slog.Int64("template_id", tmpl.ID),
		slog.Int("relations", len(set.Relations)),
	)
	return set, nil
}

// resolvePart persists the relation for part, resolving nested parts first.
// Each part is built at most once per call.
func (run *instantiation) resolvePart(ctx context.Context, part *template.Part) (*resolved, error) {
	if r, ok := run.byPart[part.ID]; ok {
		return r, nil
	}
	if run.inProgress[part.ID] {
		return nil, fmt.Errorf("template part %d depends on itself", part.ID)
	}
	run.inProgress[part.ID] = true
	defer delete(run.inProgress, part.ID)

	r := &resolved{}
	for _, f := range template.AllFields {
		v, err := run.resolveRole(ctx, part, f)
		if err != nil {
			return nil, err
		}
		switch f {
		case template.FieldSource:
			r.source = v
		case template.FieldPredicate:
			r.predicate = v
		case template.FieldObject:
			r.object = v
		}
	}
	if r.predicate.node.Kind != model.NodeAppellation {
		return nil, fmt.Errorf("template part %d: predicate must be an appellation", part.ID)
	}

	partID := part.ID
	rel := &model.Relation{
		PartOf:         run.set.ID,
		TemplatePartID: &partID,
		Source:         r.source.node,
		PredicateID:    r.predicate.node.ID,
		Object:         r.object.node,
		CreatedBy:      run.factory.creator,
		TextID:         run.factory.text,
		ProjectID:      run.factory.project,
	}
	if err := run.tx.InsertRelation(ctx, rel); err != nil {
		return nil, fmt.Errorf("insert relation for part %d: %w", part.ID, err)
	}
	r.relation = rel

	run.set.Relations = append(run.set.Relations, *rel)
	run.byPart[part.ID] = r
	run.byInternal[part.InternalID] = r
	return r, nil
}

func (run *instantiation) resolveRole(ctx context.Context, part *template.Part, f template.Field) (value, error) {
	role := part.Role(f)
	key := template.SlotKey{PartID: part.ID, PartField: f}
	field, supplied := run.fields[key]

	switch role.NodeType {
	case template.NodeTypeType:
		if !supplied || field.Appellation == nil {
			return value{}, invalidData("Field %s requires an existing appellation", key)
		}
		a, err := run.tx.GetAppellation(ctx, field.Appellation.ID)
		if err != nil {
			return value{}, fmt.Errorf("appellation %d for %s: %w", field.Appellation.ID, key, err)
		}
		return value{node: model.Node{Kind: model.NodeAppellation, ID: a.ID}, appellation: a}, nil

	case template.NodeTypeDate:
		if !supplied || field.Appellation == nil {
			return value{}, invalidData("Field %s requires an existing date appellation", key)
		}
		d, err := run.tx.GetDateAppellation(ctx, field.Appellation.ID)
		if err != nil {
			return value{}, fmt.Errorf("date appellation %d for %s: %w", field.Appellation.ID, key, err)
		}
		return value{node: model.Node{Kind: model.NodeDateAppellation, ID: d.ID}, date: d}, nil

	case template.NodeTypeRelation:
		if role.RelationPartID == nil {
			return value{}, fmt.Errorf("template part %d: %s has no target part", part.ID, f)
		}
		target, ok := run.tmpl.PartByID(*role.RelationPartID)
		if !ok {
			return value{}, fmt.Errorf("template part %d: %s refers to unknown part %d", part.ID, f, *role.RelationPartID)
		}
		nested, err := run.resolvePart(ctx, target)
		if err != nil {
			return value{}, err
		}
		return value{node: model.Node{Kind: model.NodeRelation, ID: nested.relation.ID}, relation: nested}, nil
	}

	slot := template.Slot{
		Type:      role.NodeType,
		PartID:    part.ID,
		PartField: f,
	}
	if role.Concept != nil {
		slot.ConceptID = &role.Concept.ID
	}
	var fp *FieldInput
	if supplied {
		fp = &field
	}
	a, err := run.factory.create(ctx, slot, fp)
	if err != nil {
		return value{}, err
	}
	return value{node: model.Node{Kind: model.NodeAppellation, ID: a.ID}, appellation: a}, nil
}

func (run *instantiation) lookup(k template.Key) (value, bool) {
	r, ok := run.byInternal[k.Part]
	if !ok {
		return value{}, false
	}
	return r.role(k.Field), true
}

func (run *instantiation) expression() string {
	return template.RenderExpression(run.tmpl.Expression, func(k template.Key) (string, bool) {
		v, ok := run.lookup(k)
		if !ok {
			return "", false
		}
		return v.display()
	})
}

func (run *instantiation) terminalNodes() []model.Concept {
	out := []model.Concept{}
	seen := map[int64]bool{}
	for _, k := range template.TerminalKeys(run.tmpl.TerminalNodes) {
		v, ok := run.lookup(k)
		if !ok {
			continue
		}
		c := v.interpretation()
		if c == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, *c)
	}
	return out
}
