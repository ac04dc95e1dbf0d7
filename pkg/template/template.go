package template

import "fmt"

// NodeType is the kind of a template-part role. The values are the codes the
// authoring client sends.
type NodeType string

const (
	NodeTypeType     NodeType = "TP"
	NodeTypeConcept  NodeType = "CO"
	NodeTypeRelation NodeType = "RE"
	NodeTypeIs       NodeType = "IS"
	NodeTypeHas      NodeType = "HA"
	NodeTypeDate     NodeType = "DT"
)

// Valid reports whether t is allowed for the given role.
func (t NodeType) Valid(f Field) bool {
	switch t {
	case NodeTypeType, NodeTypeConcept:
		return true
	case NodeTypeRelation, NodeTypeDate:
		return f != FieldPredicate
	case NodeTypeIs, NodeTypeHas:
		return f == FieldPredicate
	}
	return false
}

// Field is one of the three triple roles of a template part.
type Field string

const (
	FieldSource    Field = "source"
	FieldPredicate Field = "predicate"
	FieldObject    Field = "object"
)

// AllFields lists the triple roles in source, predicate, object order.
var AllFields = [...]Field{FieldSource, FieldPredicate, FieldObject}

// Flag is the single-letter form of a field used in expression and
// terminal-node keys.
func (f Field) Flag() byte {
	switch f {
	case FieldSource:
		return 's'
	case FieldPredicate:
		return 'p'
	case FieldObject:
		return 'o'
	}
	return 0
}

func fieldFromFlag(b byte) (Field, bool) {
	switch b {
	case 's':
		return FieldSource, true
	case 'p':
		return FieldPredicate, true
	case 'o':
		return FieldObject, true
	}
	return "", false
}

// Ref is a resolved pointer to a concept or concept type.
type Ref struct {
	ID    int64  `json:"id"`
	URI   string `json:"uri,omitempty"`
	Label string `json:"label,omitempty"`
}

// Role is one triple role of a template part.
type Role struct {
	NodeType    NodeType `json:"node_type"`
	Type        *Ref     `json:"type,omitempty"`
	Concept     *Ref     `json:"concept,omitempty"`
	PromptText  bool     `json:"prompt_text"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`

	// RelationInternalID points at another part of the same payload.
	RelationInternalID *int `json:"relationtemplate_internal_id,omitempty"`
	// RelationPartID is the durable id of the referenced part, set once the
	// template has been persisted.
	RelationPartID *int64 `json:"relationtemplate,omitempty"`
}

// Part is a single source-predicate-object pattern of a template.
type Part struct {
	ID         int64 `json:"id"`
	TemplateID int64 `json:"part_of"`
	InternalID int   `json:"internal_id"`
	Source     Role  `json:"source"`
	Predicate  Role  `json:"predicate"`
	Object     Role  `json:"object"`
}

// Role returns the role for field f.
func (p *Part) Role(f Field) *Role {
	switch f {
	case FieldSource:
		return &p.Source
	case FieldPredicate:
		return &p.Predicate
	case FieldObject:
		return &p.Object
	}
	return nil
}

// Template is a reusable pattern for building a relation graph.
type Template struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Expression    string `json:"expression"`
	TerminalNodes string `json:"terminal_nodes"`
	CreatedBy     int64  `json:"createdBy"`
	Parts         []Part `json:"template_parts"`
}

// PartByInternalID returns the part carrying the given internal id.
func (t *Template) PartByInternalID(id int) (*Part, bool) {
	for i := range t.Parts {
		if t.Parts[i].InternalID == id {
			return &t.Parts[i], true
		}
	}
	return nil, false
}

// PartByID returns the part with the given durable id.
func (t *Template) PartByID(id int64) (*Part, bool) {
	for i := range t.Parts {
		if t.Parts[i].ID == id {
			return &t.Parts[i], true
		}
	}
	return nil, false
}

// SlotKey identifies one role of one persisted part.
type SlotKey struct {
	PartID    int64 `json:"part_id"`
	PartField Field `json:"part_field"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d.%s", k.PartID, k.PartField)
}

// Slot describes a role the annotator must fill in when using a template.
type Slot struct {
	Type             NodeType `json:"type"`
	PartID           int64    `json:"part_id"`
	PartField        Field    `json:"part_field"`
	ConceptID        *int64   `json:"concept_id,omitempty"`
	ConceptLabel     string   `json:"concept_label,omitempty"`
	Label            string   `json:"label"`
	EvidenceRequired bool     `json:"evidence_required"`
	Description      string   `json:"description"`
}

func (s Slot) Key() SlotKey {
	return SlotKey{PartID: s.PartID, PartField: s.PartField}
}
