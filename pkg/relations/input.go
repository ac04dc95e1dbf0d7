package relations

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diging/vogon-web-sub000/pkg/template"
)

// InvalidDataError reports an instantiation payload that does not satisfy
// the template's slots.
type InvalidDataError struct {
	Message string
	Missing []template.SlotKey
}

func (e *InvalidDataError) Error() string {
	return e.Message
}

// IsInvalidData reports whether err is, or wraps, an InvalidDataError.
func IsInvalidData(err error) bool {
	var target *InvalidDataError
	return errors.As(err, &target)
}

func invalidData(format string, args ...any) error {
	return &InvalidDataError{Message: fmt.Sprintf(format, args...)}
}

// EvidenceRef points at an existing appellation. Clients usually echo the
// whole appellation they got back from create_appellation; only ID is read.
// Interpretation, Position, OccursIn, Project and CreatedBy may arrive either
// as ids or as nested objects.
type EvidenceRef struct {
	ID             int64  `json:"id" validate:"required,gt=0"`
	Interpretation any    `json:"interpretation,omitempty"`
	StringRep      string `json:"stringRep,omitempty"`
	TokenIDs       string `json:"tokenIds,omitempty"`
	AsPredicate    bool   `json:"asPredicate,omitempty"`
	Position       any    `json:"position,omitempty"`
	OccursIn       any    `json:"occursIn,omitempty"`
	Project        any    `json:"project,omitempty"`
	CreatedBy      any    `json:"createdBy,omitempty"`
	Created        string `json:"created,omitempty"`
	Year           int    `json:"year,omitempty"`
	Month          int    `json:"month,omitempty"`
	Day            int    `json:"day,omitempty"`
}

type EvidenceData struct {
	TokenIDs  string `json:"tokenIds,omitempty"`
	StringRep string `json:"stringRep,omitempty"`
}

// PositionInput describes a new text position. ID and OccursIn are accepted
// so a position echoed from an earlier response decodes; the position is
// always recorded against the relation set's text.
type PositionInput struct {
	ID            int64  `json:"id,omitempty"`
	OccursIn      any    `json:"occursIn,omitempty"`
	PositionType  string `json:"position_type" validate:"required"`
	StartOffset   *int   `json:"startOffset,omitempty"`
	EndOffset     *int   `json:"endOffset,omitempty"`
	PositionValue string `json:"position_value,omitempty"`
}

// FieldInput is the evidence an annotator submits for one slot.
type FieldInput struct {
	Type        template.NodeType `json:"type,omitempty"`
	PartID      int64             `json:"part_id" validate:"required"`
	PartField   template.Field    `json:"part_field" validate:"required,oneof=source predicate object"`
	ConceptID   *int64            `json:"concept_id,omitempty"`
	Appellation *EvidenceRef      `json:"appellation,omitempty" validate:"omitempty"`
	Position    *PositionInput    `json:"position,omitempty" validate:"omitempty"`
	Data        *EvidenceData     `json:"data,omitempty"`
}

func (f FieldInput) Key() template.SlotKey {
	return template.SlotKey{PartID: f.PartID, PartField: f.PartField}
}

// TemporalInput attaches a date to the root relation, either by referring to
// an existing date appellation or by giving year, month and day.
type TemporalInput struct {
	Appellation *EvidenceRef   `json:"appellation,omitempty" validate:"omitempty"`
	Year        int            `json:"year,omitempty"`
	Month       int            `json:"month,omitempty" validate:"gte=0,lte=12"`
	Day         int            `json:"day,omitempty" validate:"gte=0,lte=31"`
	Position    *PositionInput `json:"position,omitempty" validate:"omitempty"`
	Data        *EvidenceData  `json:"data,omitempty"`
}

// RelationSetInput is the payload of one template instantiation.
type RelationSetInput struct {
	Fields   []FieldInput   `json:"fields" validate:"dive"`
	OccursIn int64          `json:"occursIn" validate:"required,gt=0"`
	Project  int64          `json:"project"`
	Start    *TemporalInput `json:"start,omitempty" validate:"omitempty"`
	End      *TemporalInput `json:"end,omitempty" validate:"omitempty"`
	Occur    *TemporalInput `json:"occur,omitempty" validate:"omitempty"`
}

// checkRequired compares the template's slots with the submitted fields and
// indexes the fields by slot key.
func checkRequired(t *template.Template, fields []FieldInput) (map[template.SlotKey]FieldInput, error) {
	provided := make(map[template.SlotKey]FieldInput, len(fields))
	for _, f := range fields {
		provided[f.Key()] = f
	}

	var missing []template.SlotKey
	for key := range template.RequiredKeys(t) {
		if _, ok := provided[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return provided, nil
	}

	sort.Slice(missing, func(i, j int) bool {
		if missing[i].PartID != missing[j].PartID {
			return missing[i].PartID < missing[j].PartID
		}
		return fieldOrder(missing[i].PartField) < fieldOrder(missing[j].PartField)
	})
	names := make([]string, len(missing))
	for i, k := range missing {
		names[i] = k.String()
	}
	return nil, &InvalidDataError{
		Message: "Missing fields: " + strings.Join(names, ", "),
		Missing: missing,
	}
}

func fieldOrder(f template.Field) int {
	for i, x := range template.AllFields {
		if x == f {
			return i
		}
	}
	return len(template.AllFields)
}
