package relations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// attachTemporal links the root relation to the start, end and occur dates
// supplied with the payload.
func (run *instantiation) attachTemporal(ctx context.Context, in RelationSetInput) error {
	dims := []struct {
		name  string
		input *TemporalInput
		spec  ConceptSpec
	}{
		{"start", in.Start, run.concepts.Start},
		{"end", in.End, run.concepts.End},
		{"occur", in.Occur, run.concepts.Occur},
	}

	var root *resolved
	for _, d := range dims {
		if d.input == nil {
			continue
		}
		if root == nil {
			r, err := run.root()
			if err != nil {
				return err
			}
			root = r
		}
		if err := run.attachDate(ctx, root, d.name, d.input, d.spec); err != nil {
			return err
		}
	}
	return nil
}

// root returns the relation at the top of the dependency graph, or the first
// part when no part refers to another.
func (run *instantiation) root() (*resolved, error) {
	if len(run.tmpl.Parts) == 0 {
		return nil, fmt.Errorf("template %d has no parts", run.tmpl.ID)
	}
	g := template.GraphFromParts(run.tmpl.Parts)
	id, err := g.Root(int64(run.tmpl.Parts[0].InternalID))
	if err != nil {
		return nil, fmt.Errorf("root relation of template %d: %w", run.tmpl.ID, err)
	}
	r, ok := run.byInternal[int(id)]
	if !ok {
		return nil, fmt.Errorf("root part %d of template %d was not instantiated", id, run.tmpl.ID)
	}
	return r, nil
}

func (run *instantiation) attachDate(ctx context.Context, root *resolved, name string, in *TemporalInput, spec ConceptSpec) error {
	concept, err := run.factory.wellKnown(ctx, spec)
	if err != nil {
		return fmt.Errorf("%s predicate: %w", name, err)
	}
	predicate := &model.Appellation{
		InterpretationID: &concept.ID,
		Interpretation:   concept,
		AsPredicate:      true,
		CreatedBy:        run.factory.creator,
		TextID:           run.factory.text,
		ProjectID:        run.factory.project,
	}
	if err := run.tx.InsertAppellation(ctx, predicate); err != nil {
		return fmt.Errorf("insert %s predicate: %w", name, err)
	}

	date, err := run.dateFor(ctx, name, in)
	if err != nil {
		return err
	}

	rel := &model.Relation{
		PartOf:      run.set.ID,
		Source:      model.Node{Kind: model.NodeRelation, ID: root.relation.ID},
		PredicateID: predicate.ID,
		Object:      model.Node{Kind: model.NodeDateAppellation, ID: date.ID},
		CreatedBy:   run.factory.creator,
		TextID:      run.factory.text,
		ProjectID:   run.factory.project,
	}
	if err := run.tx.InsertRelation(ctx, rel); err != nil {
		return fmt.Errorf("insert %s relation: %w", name, err)
	}
	run.set.Relations = append(run.set.Relations, *rel)

	run.factory.logger.Debug("temporal relation attached",
		slog.String("dimension", name),
		slog.Int64("relation_id", rel.ID),
		slog.Int64("date_appellation_id", date.ID),
	)
	return nil
}

func (run *instantiation) dateFor(ctx context.Context, name string, in *TemporalInput) (*model.DateAppellation, error) {
	if in.Appellation != nil {
		d, err := run.tx.GetDateAppellation(ctx, in.Appellation.ID)
		if err != nil {
			return nil, fmt.Errorf("%s date appellation %d: %w", name, in.Appellation.ID, err)
		}
		return d, nil
	}

	if in.Year <= 0 {
		return nil, invalidData("Temporal %s requires a year", name)
	}
	if in.Day > 0 && in.Month == 0 {
		return nil, invalidData("Temporal %s has a day without a month", name)
	}

	d := &model.DateAppellation{
		Year:      in.Year,
		Month:     in.Month,
		Day:       in.Day,
		CreatedBy: run.factory.creator,
		TextID:    run.factory.text,
		ProjectID: run.factory.project,
	}
	if in.Data != nil {
		d.StringRep = in.Data.StringRep
	}
	if in.Position != nil {
		pos, err := insertPosition(ctx, run.tx, run.factory.text, in.Position)
		if err != nil {
			return nil, err
		}
		d.PositionID = &pos.ID
	}
	if err := run.tx.InsertDateAppellation(ctx, d); err != nil {
		return nil, fmt.Errorf("insert %s date appellation: %w", name, err)
	}
	return d, nil
}
