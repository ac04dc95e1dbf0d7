package relations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// appellationFactory creates appellations for one instantiation. Appellations
// are reused per (part_id, part_field) so that evidence referenced from
// several places of a nested template maps to a single row.
type appellationFactory struct {
	tx       Tx
	concepts Concepts
	logger   *slog.Logger

	creator int64
	text    int64
	project int64

	cache map[template.SlotKey]*model.Appellation
}

func newAppellationFactory(tx Tx, concepts Concepts, logger *slog.Logger, creator, text, project int64) *appellationFactory {
	return &appellationFactory{
		tx:       tx,
		concepts: concepts,
		logger:   logger,
		creator:  creator,
		text:     text,
		project:  project,
		cache:    make(map[template.SlotKey]*model.Appellation),
	}
}

// create returns the appellation for slot, creating it on first use. field
// is nil when the annotator supplied nothing for this role.
func (f *appellationFactory) create(ctx context.Context, slot template.Slot, field *FieldInput) (*model.Appellation, error) {
	key := slot.Key()
	if a, ok := f.cache[key]; ok {
		return a, nil
	}

	a := &model.Appellation{
		AsPredicate: slot.PartField == template.FieldPredicate,
		CreatedBy:   f.creator,
		TextID:      f.text,
		ProjectID:   f.project,
	}

	if field != nil && field.Position != nil {
		pos, err := insertPosition(ctx, f.tx, f.text, field.Position)
		if err != nil {
			return nil, err
		}
		a.PositionID = &pos.ID
	}
	if field != nil && field.Data != nil {
		a.TokenIDs = field.Data.TokenIDs
		a.StringRep = field.Data.StringRep
	}

	concept, err := f.interpretation(ctx, slot, field)
	if err != nil {
		return nil, err
	}
	if concept != nil {
		a.InterpretationID = &concept.ID
		a.Interpretation = concept
	}

	if err := f.tx.InsertAppellation(ctx, a); err != nil {
		return nil, fmt.Errorf("insert appellation for %s: %w", key, err)
	}
	f.logger.Debug("appellation created",
		slog.Int64("appellation_id", a.ID),
		slog.String("slot", key.String()),
	)
	f.cache[key] = a
	return a, nil
}

func (f *appellationFactory) interpretation(ctx context.Context, slot template.Slot, field *FieldInput) (*model.Concept, error) {
	switch slot.Type {
	case template.NodeTypeIs:
		return f.wellKnown(ctx, f.concepts.Is)
	case template.NodeTypeHas:
		return f.wellKnown(ctx, f.concepts.Has)
	}

	var id *int64
	if field != nil && field.ConceptID != nil {
		id = field.ConceptID
	} else if slot.ConceptID != nil && slot.Type == template.NodeTypeConcept {
		id = slot.ConceptID
	}
	if id == nil {
		return nil, nil
	}
	c, err := f.tx.GetConcept(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("concept %d for %s: %w", *id, slot.Key(), err)
	}
	return c, nil
}

func (f *appellationFactory) wellKnown(ctx context.Context, spec ConceptSpec) (*model.Concept, error) {
	if spec.URI == "" {
		return nil, fmt.Errorf("well-known concept is not configured")
	}
	c, err := f.tx.GetOrCreateConcept(ctx, spec.URI, spec.Label)
	if err != nil {
		return nil, fmt.Errorf("concept %s: %w", spec.URI, err)
	}
	return c, nil
}

func insertPosition(ctx context.Context, tx Tx, text int64, in *PositionInput) (*model.TextPosition, error) {
	pos := &model.TextPosition{
		TextID:        text,
		PositionType:  in.PositionType,
		StartOffset:   in.StartOffset,
		EndOffset:     in.EndOffset,
		PositionValue: in.PositionValue,
	}
	if err := tx.InsertTextPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("insert text position: %w", err)
	}
	return pos, nil
}
