package model

import (
	"fmt"
	"time"
)

// NodeKind tags what a relation's source or object points at.
type NodeKind string

const (
	NodeAppellation     NodeKind = "appellation"
	NodeRelation        NodeKind = "relation"
	NodeDateAppellation NodeKind = "date_appellation"
)

// Node is a typed reference to the source or object of a Relation.
type Node struct {
	Kind NodeKind `json:"kind"`
	ID   int64    `json:"id"`
}

func (n Node) String() string {
	return fmt.Sprintf("%s:%d", n.Kind, n.ID)
}

// Valid reports whether the node kind is one of the known kinds.
func (n Node) Valid() bool {
	switch n.Kind {
	case NodeAppellation, NodeRelation, NodeDateAppellation:
		return n.ID > 0
	}
	return false
}

type ConceptType struct {
	ID        int64     `json:"id" db:"id"`
	URI       string    `json:"uri" db:"uri"`
	Label     string    `json:"label" db:"label"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Concept struct {
	ID        int64     `json:"id" db:"id"`
	URI       string    `json:"uri" db:"uri"`
	Label     string    `json:"label" db:"label"`
	TypeID    *int64    `json:"typeId,omitempty" db:"type_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TextPosition locates evidence inside a text.
type TextPosition struct {
	ID            int64  `json:"id" db:"id"`
	TextID        int64  `json:"occursIn" db:"text_id"`
	PositionType  string `json:"position_type" db:"position_type"`
	StartOffset   *int   `json:"startOffset,omitempty" db:"start_offset"`
	EndOffset     *int   `json:"endOffset,omitempty" db:"end_offset"`
	PositionValue string `json:"position_value,omitempty" db:"position_value"`
}

type Appellation struct {
	ID               int64     `json:"id" db:"id"`
	InterpretationID *int64    `json:"interpretation,omitempty" db:"interpretation_id"`
	Interpretation   *Concept  `json:"-"`
	AsPredicate      bool      `json:"asPredicate" db:"as_predicate"`
	TokenIDs         string    `json:"tokenIds" db:"token_ids"`
	StringRep        string    `json:"stringRep" db:"string_rep"`
	PositionID       *int64    `json:"position,omitempty" db:"position_id"`
	CreatedBy        int64     `json:"createdBy" db:"created_by"`
	TextID           int64     `json:"occursIn" db:"text_id"`
	ProjectID        int64     `json:"project" db:"project_id"`
	CreatedAt        time.Time `json:"created" db:"created_at"`
}

type DateAppellation struct {
	ID         int64     `json:"id" db:"id"`
	Year       int       `json:"year" db:"year"`
	Month      int       `json:"month,omitempty" db:"month"`
	Day        int       `json:"day,omitempty" db:"day"`
	StringRep  string    `json:"stringRep" db:"string_rep"`
	PositionID *int64    `json:"position,omitempty" db:"position_id"`
	CreatedBy  int64     `json:"createdBy" db:"created_by"`
	TextID     int64     `json:"occursIn" db:"text_id"`
	ProjectID  int64     `json:"project" db:"project_id"`
	CreatedAt  time.Time `json:"created" db:"created_at"`
}

// DateRepresentation formats the date with as much precision as it carries.
func (d *DateAppellation) DateRepresentation() string {
	switch {
	case d.Month == 0:
		return fmt.Sprintf("%04d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

type Relation struct {
	ID             int64     `json:"id" db:"id"`
	PartOf         int64     `json:"partOf" db:"part_of"`
	TemplatePartID *int64    `json:"templatePart,omitempty" db:"template_part_id"`
	Source         Node      `json:"source"`
	PredicateID    int64     `json:"predicate" db:"predicate_id"`
	Object         Node      `json:"object"`
	CreatedBy      int64     `json:"createdBy" db:"created_by"`
	TextID         int64     `json:"occursIn" db:"text_id"`
	ProjectID      int64     `json:"project" db:"project_id"`
	CreatedAt      time.Time `json:"created" db:"created_at"`
}

type RelationSet struct {
	ID            int64      `json:"id" db:"id"`
	TemplateID    *int64     `json:"template,omitempty" db:"template_id"`
	CreatedBy     int64      `json:"createdBy" db:"created_by"`
	TextID        int64      `json:"occursIn" db:"text_id"`
	ProjectID     int64      `json:"project" db:"project_id"`
	Expression    string     `json:"representation" db:"expression"`
	TerminalNodes []Concept  `json:"terminal_nodes"`
	Relations     []Relation `json:"relations,omitempty"`
	Submitted     bool       `json:"submitted" db:"submitted"`
	SubmittedOn   *time.Time `json:"submittedOn,omitempty" db:"submitted_on"`
	CreatedAt     time.Time  `json:"created" db:"created_at"`
}
