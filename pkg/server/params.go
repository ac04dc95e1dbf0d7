package server

import (
	"github.com/diging/vogon-web-sub000/pkg/relations"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

type IDParams struct {
	ID int64 `json:"id" jsonschema:"description:Record id" validate:"required,gt=0"`
}

// RoleParams is one role of a template part as the authoring client sends it.
type RoleParams struct {
	NodeType           template.NodeType `json:"node_type" jsonschema:"description:One of TP CO RE IS HA DT" validate:"required,oneof=TP CO RE IS HA DT"`
	TypeID             *int64            `json:"type,omitempty" jsonschema:"description:Concept type id for TP roles"`
	ConceptID          *int64            `json:"concept,omitempty" jsonschema:"description:Concept id for CO roles"`
	PromptText         bool              `json:"prompt_text,omitempty" jsonschema:"description:Ask the annotator for text evidence"`
	Label              string            `json:"label,omitempty" validate:"max=255,text"`
	Description        string            `json:"description,omitempty" validate:"max=5000,text"`
	RelationInternalID *int              `json:"relationtemplate_internal_id,omitempty" jsonschema:"description:Internal id of the part a RE role points at"`
}

func (r RoleParams) role() template.Role {
	out := template.Role{
		NodeType:           r.NodeType,
		PromptText:         r.PromptText,
		Label:              r.Label,
		Description:        r.Description,
		RelationInternalID: r.RelationInternalID,
	}
	if r.TypeID != nil {
		out.Type = &template.Ref{ID: *r.TypeID}
	}
	if r.ConceptID != nil {
		out.Concept = &template.Ref{ID: *r.ConceptID}
	}
	return out
}

type PartParams struct {
	InternalID int        `json:"internal_id" jsonschema:"description:Payload-local id of the part"`
	Source     RoleParams `json:"source"`
	Predicate  RoleParams `json:"predicate"`
	Object     RoleParams `json:"object"`
}

type TemplateParams struct {
	Name          string       `json:"name" jsonschema:"description:Template name" validate:"required,max=255,text"`
	Description   string       `json:"description,omitempty" validate:"max=5000,text"`
	Expression    string       `json:"expression" jsonschema:"description:Display expression with {Ns} {Np} {No} placeholders" validate:"max=5000"`
	TerminalNodes string       `json:"terminal_nodes,omitempty" jsonschema:"description:Comma separated keys such as 0s,1o"`
	CreatedBy     int64        `json:"createdBy,omitempty"`
	Parts         []PartParams `json:"template_parts" jsonschema:"description:Parts of the template" validate:"max=100,dive"`
}

func (p TemplateParams) toTemplate() *template.Template {
	t := &template.Template{
		Name:          p.Name,
		Description:   p.Description,
		Expression:    p.Expression,
		TerminalNodes: p.TerminalNodes,
		CreatedBy:     p.CreatedBy,
		Parts:         make([]template.Part, len(p.Parts)),
	}
	for i, part := range p.Parts {
		t.Parts[i] = template.Part{
			InternalID: part.InternalID,
			Source:     part.Source.role(),
			Predicate:  part.Predicate.role(),
			Object:     part.Object.role(),
		}
	}
	return t
}

type ListTemplatesParams struct {
	Query string `json:"query,omitempty" jsonschema:"description:Text matched against name and description" validate:"max=500,text"`
}

type CreateConceptTypeParams struct {
	URI   string `json:"uri" validate:"required,max=2048,uri"`
	Label string `json:"label" validate:"required,max=255,text"`
}

type CreateConceptParams struct {
	URI    string `json:"uri" validate:"required,max=2048,uri"`
	Label  string `json:"label" validate:"required,max=255,text"`
	TypeID *int64 `json:"typeId,omitempty" jsonschema:"description:Concept type id"`
}

type SearchConceptsParams struct {
	Query  string `json:"query,omitempty" jsonschema:"description:Text matched against label and uri" validate:"max=500,text"`
	TypeID *int64 `json:"typeId,omitempty"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

type CreateAppellationParams struct {
	InterpretationID *int64                   `json:"interpretation,omitempty" jsonschema:"description:Concept the evidence refers to"`
	AsPredicate      bool                     `json:"asPredicate,omitempty"`
	TokenIDs         string                   `json:"tokenIds,omitempty" validate:"max=5000"`
	StringRep        string                   `json:"stringRep,omitempty" validate:"max=5000,text"`
	OccursIn         int64                    `json:"occursIn" jsonschema:"description:Text id" validate:"required,gt=0"`
	Project          int64                    `json:"project,omitempty"`
	CreatedBy        int64                    `json:"createdBy,omitempty"`
	Position         *relations.PositionInput `json:"position,omitempty" validate:"omitempty"`
}

type CreateDateAppellationParams struct {
	Year      int                      `json:"year" validate:"required,gt=0"`
	Month     int                      `json:"month,omitempty" validate:"gte=0,lte=12"`
	Day       int                      `json:"day,omitempty" validate:"gte=0,lte=31"`
	StringRep string                   `json:"stringRep,omitempty" validate:"max=5000,text"`
	OccursIn  int64                    `json:"occursIn" validate:"required,gt=0"`
	Project   int64                    `json:"project,omitempty"`
	CreatedBy int64                    `json:"createdBy,omitempty"`
	Position  *relations.PositionInput `json:"position,omitempty" validate:"omitempty"`
}

type CreateRelationSetParams struct {
	TemplateID int64                    `json:"template" jsonschema:"description:Template to instantiate" validate:"required,gt=0"`
	CreatedBy  int64                    `json:"createdBy,omitempty"`
	Fields     []relations.FieldInput   `json:"fields" jsonschema:"description:Evidence for each slot of the template" validate:"max=300,dive"`
	OccursIn   int64                    `json:"occursIn" validate:"required,gt=0"`
	Project    int64                    `json:"project,omitempty"`
	Start      *relations.TemporalInput `json:"start,omitempty" validate:"omitempty"`
	End        *relations.TemporalInput `json:"end,omitempty" validate:"omitempty"`
	Occur      *relations.TemporalInput `json:"occur,omitempty" validate:"omitempty"`
}

func (p CreateRelationSetParams) input() relations.RelationSetInput {
	return relations.RelationSetInput{
		Fields:   p.Fields,
		OccursIn: p.OccursIn,
		Project:  p.Project,
		Start:    p.Start,
		End:      p.End,
		Occur:    p.Occur,
	}
}

type ListRelationSetsParams struct {
	OccursIn  int64 `json:"occursIn,omitempty" jsonschema:"description:Only sets from this text"`
	Project   int64 `json:"project,omitempty"`
	Submitted *bool `json:"submitted,omitempty"`
}
