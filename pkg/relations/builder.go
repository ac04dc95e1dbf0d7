package relations

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diging/vogon-web-sub000/internal/logging"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

// Engine builds templates and instantiates them into relation sets.
type Engine struct {
	store    Store
	concepts Concepts
	logger   *slog.Logger
}

func NewEngine(store Store, concepts Concepts) *Engine {
	return NewEngineWithLogger(store, concepts, slog.Default())
}

func NewEngineWithLogger(store Store, concepts Concepts, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, concepts: concepts, logger: logger}
}

// ValidateTemplate runs the structural checks on an authoring payload without
// touching the store. It also applies template.CheckRoles, so a template that
// passes template.Validate can still be refused here when it has no parts,
// reuses an internal id or puts a node type in a role that cannot hold it.
func (e *Engine) ValidateTemplate(t *template.Template) error {
	if err := template.Validate(t); err != nil {
		return err
	}
	return template.CheckRoles(t.Parts)
}

// CreateTemplate validates t and persists it with its parts in one
// transaction. Parts are written first, then relation roles are wired to the
// durable ids of the parts they refer to.
func (e *Engine) CreateTemplate(ctx context.Context, t *template.Template) (*template.Template, error) {
	if err := e.ValidateTemplate(t); err != nil {
		return nil, err
	}

	out := &template.Template{
		Name:          t.Name,
		Description:   t.Description,
		Expression:    t.Expression,
		TerminalNodes: t.TerminalNodes,
		CreatedBy:     t.CreatedBy,
	}
	err := e.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertTemplate(ctx, out); err != nil {
			return fmt.Errorf("insert template: %w", err)
		}

		byInternal := make(map[int]int64, len(t.Parts))
		for _, in := range t.Parts {
			part := template.Part{
				TemplateID: out.ID,
				InternalID: in.InternalID,
				Source:     relevantRole(in.Source),
				Predicate:  relevantRole(in.Predicate),
				Object:     relevantRole(in.Object),
			}
			if err := tx.InsertTemplatePart(ctx, &part); err != nil {
				return fmt.Errorf("insert template part %d: %w", in.InternalID, err)
			}
			byInternal[part.InternalID] = part.ID
			out.Parts = append(out.Parts, part)
		}

		for i := range out.Parts {
			part := &out.Parts[i]
			wired := false
			for _, f := range [...]template.Field{template.FieldSource, template.FieldObject} {
				role := part.Role(f)
				if role.NodeType != template.NodeTypeRelation {
					continue
				}
				id, ok := byInternal[*role.RelationInternalID]
				if !ok {
					return fmt.Errorf("part %d: %s refers to unknown part %d", part.InternalID, f, *role.RelationInternalID)
				}
				role.RelationPartID = &id
				wired = true
			}
			if !wired {
				continue
			}
			if err := tx.UpdateTemplatePartRelations(ctx, part); err != nil {
				return fmt.Errorf("update template part %d: %w", part.InternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.LoggerWithContext(ctx, e.logger).Info("template created",
		slog.Int64("template_id", out.ID),
		slog.String("name", out.Name),
		slog.Int("parts", len(out.Parts)),
	)
	return out, nil
}

// relevantRole keeps only the attributes that matter for the role's node type.
func relevantRole(in template.Role) template.Role {
	out := template.Role{NodeType: in.NodeType}
	switch in.NodeType {
	case template.NodeTypeType:
		out.Type = in.Type
		out.PromptText = in.PromptText
		out.Label = in.Label
		out.Description = in.Description
	case template.NodeTypeConcept:
		out.Concept = in.Concept
		out.PromptText = in.PromptText
		out.Label = in.Label
		out.Description = in.Description
	case template.NodeTypeRelation:
		out.RelationInternalID = in.RelationInternalID
	case template.NodeTypeIs, template.NodeTypeHas, template.NodeTypeDate:
		out.PromptText = in.PromptText
		out.Label = in.Label
		out.Description = in.Description
	}
	return out
}
