package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields(t *testing.T) {
	person := &Ref{ID: 3, Label: "Person"}
	born := &Ref{ID: 9, Label: "born in"}

	tmpl := &Template{Parts: []Part{
		{
			ID:         100,
			InternalID: 0,
			Source:     Role{NodeType: NodeTypeType, Type: person, Label: "Who", Description: "the person"},
			Predicate:  Role{NodeType: NodeTypeConcept, Concept: born, PromptText: true, Label: "Verb"},
			Object:     Role{NodeType: NodeTypeDate, Label: "When"},
		},
		{
			ID:         101,
			InternalID: 1,
			Source:     Role{NodeType: NodeTypeRelation, RelationInternalID: intp(0)},
			Predicate:  Role{NodeType: NodeTypeHas},
			Object:     Role{NodeType: NodeTypeConcept, Concept: born},
		},
		{
			ID:         102,
			InternalID: 2,
			Source:     Role{NodeType: NodeTypeType},
			Predicate:  Role{NodeType: NodeTypeIs},
			Object:     Role{NodeType: NodeTypeConcept, PromptText: true},
		},
	}}

	slots := Fields(tmpl)
	require.Len(t, slots, 4)

	assert.Equal(t, Slot{
		Type: NodeTypeType, PartID: 100, PartField: FieldSource,
		ConceptID: &person.ID, ConceptLabel: "Person", Label: "Who", Description: "the person",
	}, slots[0])

	assert.Equal(t, SlotKey{100, FieldPredicate}, slots[1].Key())
	assert.True(t, slots[1].EvidenceRequired)
	assert.Equal(t, "born in", slots[1].ConceptLabel)

	assert.Equal(t, SlotKey{100, FieldObject}, slots[2].Key())
	assert.Equal(t, NodeTypeDate, slots[2].Type)
	assert.Nil(t, slots[2].ConceptID)

	assert.Equal(t, SlotKey{102, FieldSource}, slots[3].Key(), "type role without a type reference still emits")

	keys := RequiredKeys(tmpl)
	assert.Len(t, keys, 4)
	assert.Contains(t, keys, SlotKey{100, FieldObject})
	assert.NotContains(t, keys, SlotKey{101, FieldObject})
	assert.NotContains(t, keys, SlotKey{102, FieldObject}, "concept role without a concept is skipped")
}

func TestFieldsEmpty(t *testing.T) {
	assert.Nil(t, Fields(nil))
	assert.Empty(t, Fields(&Template{}))
}

func TestSlotKeyString(t *testing.T) {
	assert.Equal(t, "12.object", SlotKey{PartID: 12, PartField: FieldObject}.String())
}
