package relations_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diging/vogon-web-sub000/pkg/database"
	"github.com/diging/vogon-web-sub000/pkg/model"
	"github.com/diging/vogon-web-sub000/pkg/relations"
	"github.com/diging/vogon-web-sub000/pkg/template"
)

var testConcepts = relations.Concepts{
	Is:    relations.ConceptSpec{URI: "http://example.org/c/be", Label: "be"},
	Has:   relations.ConceptSpec{URI: "http://example.org/c/have", Label: "have"},
	Start: relations.ConceptSpec{URI: "http://example.org/c/start", Label: "start"},
	End:   relations.ConceptSpec{URI: "http://example.org/c/end", Label: "end"},
	Occur: relations.ConceptSpec{URI: "http://example.org/c/occur", Label: "occur"},
}

const (
	textID    = int64(7)
	projectID = int64(2)
	userID    = int64(1)
)

type fixture struct {
	db     *database.DB
	engine *relations.Engine
	person *model.ConceptType
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "relations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	person, err := db.CreateConceptType(context.Background(), "http://example.org/types/person", "Person")
	require.NoError(t, err)

	return &fixture{db: db, engine: relations.NewEngine(db, testConcepts), person: person}
}

func intp(v int) *int { return &v }

func (f *fixture) typeRole() template.Role {
	return template.Role{NodeType: template.NodeTypeType, Type: &template.Ref{ID: f.person.ID}}
}

func (f *fixture) simplePart(id int) template.Part {
	return template.Part{
		InternalID: id,
		Source:     f.typeRole(),
		Predicate:  template.Role{NodeType: template.NodeTypeIs},
		Object:     f.typeRole(),
	}
}

func relationTo(id int) template.Role {
	return template.Role{NodeType: template.NodeTypeRelation, RelationInternalID: intp(id)}
}

func (f *fixture) create(t *testing.T, tmpl *template.Template) *template.Template {
	t.Helper()
	created, err := f.engine.CreateTemplate(context.Background(), tmpl)
	require.NoError(t, err)
	loaded, err := f.db.GetTemplate(context.Background(), created.ID)
	require.NoError(t, err)
	return loaded
}

// evidence creates one appellation per slot, interpreted as a concept named
// after the slot, and returns the payload fields.
func (f *fixture) evidence(t *testing.T, tmpl *template.Template, labels map[template.SlotKey]string) []relations.FieldInput {
	t.Helper()
	ctx := context.Background()
	var fields []relations.FieldInput
	for _, slot := range template.Fields(tmpl) {
		label, ok := labels[slot.Key()]
		if !ok {
			label = slot.Key().String()
		}
		c, err := f.db.CreateConcept(ctx, fmt.Sprintf("http://example.org/c/%d/%s", tmpl.ID, slot.Key()), label, &f.person.ID)
		require.NoError(t, err)
		a := &model.Appellation{InterpretationID: &c.ID, StringRep: label, CreatedBy: userID, TextID: textID, ProjectID: projectID}
		require.NoError(t, f.db.CreateAppellation(ctx, a, nil))
		fields = append(fields, relations.FieldInput{
			Type:        slot.Type,
			PartID:      slot.PartID,
			PartField:   slot.PartField,
			Appellation: &relations.EvidenceRef{ID: a.ID},
		})
	}
	return fields
}

func TestSinglePartTemplate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl := f.create(t, &template.Template{
		Name:          "Identity",
		Expression:    "{0s} {0p} {0o}",
		TerminalNodes: "0s,0o",
		Parts:         []template.Part{f.simplePart(0)},
	})
	part := tmpl.Parts[0]

	fields := f.evidence(t, tmpl, map[template.SlotKey]string{
		{PartID: part.ID, PartField: template.FieldSource}: "Einstein",
		{PartID: part.ID, PartField: template.FieldObject}: "Physicist",
	})
	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{
		Fields: fields, OccursIn: textID, Project: projectID,
	}, userID)
	require.NoError(t, err)

	require.Len(t, set.Relations, 1)
	assert.Equal(t, "Einstein be Physicist", set.Expression)
	labels := []string{}
	for _, c := range set.TerminalNodes {
		labels = append(labels, c.Label)
	}
	assert.Equal(t, []string{"Einstein", "Physicist"}, labels)

	stored, err := f.db.GetRelationSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, set.Expression, stored.Expression)
	assert.Len(t, stored.TerminalNodes, 2)
	require.Len(t, stored.Relations, 1)
	assert.Equal(t, &part.ID, stored.Relations[0].TemplatePartID)

	pred, err := f.db.GetAppellation(ctx, stored.Relations[0].PredicateID)
	require.NoError(t, err)
	assert.True(t, pred.AsPredicate)
	require.NotNil(t, pred.Interpretation)
	assert.Equal(t, testConcepts.Is.URI, pred.Interpretation.URI)
}

func TestUninterpretedAppellationRendersMissing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl := f.create(t, &template.Template{
		Name:          "Identity",
		Expression:    "{0s} {0p} {0o}",
		TerminalNodes: "0s,0o",
		Parts:         []template.Part{f.simplePart(0)},
	})
	part := tmpl.Parts[0]

	var fields []relations.FieldInput
	for _, slot := range template.Fields(tmpl) {
		a := &model.Appellation{StringRep: "raw-" + string(slot.PartField), CreatedBy: userID, TextID: textID, ProjectID: projectID}
		require.NoError(t, f.db.CreateAppellation(ctx, a, nil))
		fields = append(fields, relations.FieldInput{
			Type:        slot.Type,
			PartID:      part.ID,
			PartField:   slot.PartField,
			Appellation: &relations.EvidenceRef{ID: a.ID},
		})
	}

	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{
		Fields: fields, OccursIn: textID, Project: projectID,
	}, userID)
	require.NoError(t, err)
	assert.Equal(t, "[missing] be [missing]", set.Expression)
	assert.Empty(t, set.TerminalNodes)
	require.Len(t, set.Relations, 1)
}

func TestMissingField(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl := f.create(t, &template.Template{Name: "Identity", Parts: []template.Part{f.simplePart(0)}})
	fields := f.evidence(t, tmpl, nil)
	require.Len(t, fields, 2)

	_, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{
		Fields: fields[1:], OccursIn: textID,
	}, userID)
	require.Error(t, err)
	assert.True(t, relations.IsInvalidData(err))

	var invalid *relations.InvalidDataError
	require.True(t, errors.As(err, &invalid))
	missing := template.SlotKey{PartID: tmpl.Parts[0].ID, PartField: template.FieldSource}
	assert.Equal(t, []template.SlotKey{missing}, invalid.Missing)
	assert.Equal(t, "Missing fields: "+missing.String(), invalid.Message)

	sets, err := f.db.ListRelationSets(ctx, database.RelationSetFilter{})
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestNestedTemplateWiring(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p0, p1 := f.simplePart(0), f.simplePart(1)
	p0.Object = relationTo(1)
	created, err := f.engine.CreateTemplate(ctx, &template.Template{
		Name:       "Claim",
		Expression: "{0s} says that {1s} {1p} {1o}",
		Parts:      []template.Part{p0, p1},
	})
	require.NoError(t, err)

	tmpl, err := f.db.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	inner, ok := tmpl.PartByInternalID(1)
	require.True(t, ok)
	outer, ok := tmpl.PartByInternalID(0)
	require.True(t, ok)
	require.NotNil(t, outer.Object.RelationPartID)
	assert.Equal(t, inner.ID, *outer.Object.RelationPartID)
	assert.Nil(t, outer.Object.Type, "relation roles keep only their reference")

	fields := f.evidence(t, tmpl, map[template.SlotKey]string{
		{PartID: outer.ID, PartField: template.FieldSource}: "Bohr",
		{PartID: inner.ID, PartField: template.FieldSource}: "light",
		{PartID: inner.ID, PartField: template.FieldObject}: "wave",
	})
	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{Fields: fields, OccursIn: textID}, userID)
	require.NoError(t, err)
	require.Len(t, set.Relations, 2)
	assert.Equal(t, "Bohr says that light be wave", set.Expression)

	byPart := map[int64]model.Relation{}
	for _, r := range set.Relations {
		byPart[*r.TemplatePartID] = r
	}
	assert.Equal(t, model.Node{Kind: model.NodeRelation, ID: byPart[inner.ID].ID}, byPart[outer.ID].Object)
}

func TestDiamondBuildsSharedPartOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	top := template.Part{
		InternalID: 0,
		Source:     relationTo(1),
		Predicate:  template.Role{NodeType: template.NodeTypeIs},
		Object:     relationTo(2),
	}
	left, right, shared := f.simplePart(1), f.simplePart(2), f.simplePart(3)
	left.Object = relationTo(3)
	right.Object = relationTo(3)

	tmpl := f.create(t, &template.Template{Name: "Diamond", Parts: []template.Part{top, left, right, shared}})
	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{
		Fields: f.evidence(t, tmpl, nil), OccursIn: textID,
	}, userID)
	require.NoError(t, err)
	require.Len(t, set.Relations, 4)

	byInternal := map[int]model.Relation{}
	for _, r := range set.Relations {
		p, ok := tmpl.PartByID(*r.TemplatePartID)
		require.True(t, ok)
		byInternal[p.InternalID] = r
	}
	assert.Equal(t, byInternal[1].Object, byInternal[2].Object)
	assert.Equal(t, model.Node{Kind: model.NodeRelation, ID: byInternal[3].ID}, byInternal[1].Object)
}

func TestConceptRoles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	bornIn, err := f.db.CreateConcept(ctx, "http://example.org/c/born-in", "was born in", nil)
	require.NoError(t, err)
	germany, err := f.db.CreateConcept(ctx, "http://example.org/c/germany", "Germany", nil)
	require.NoError(t, err)

	tmpl := f.create(t, &template.Template{
		Name:          "Birth place",
		Expression:    "{0s} {0p} {0o}",
		TerminalNodes: "0s,0o",
		Parts: []template.Part{{
			InternalID: 0,
			Source:     f.typeRole(),
			Predicate:  template.Role{NodeType: template.NodeTypeConcept, Concept: &template.Ref{ID: bornIn.ID}, PromptText: true},
			Object:     template.Role{NodeType: template.NodeTypeConcept, Concept: &template.Ref{ID: germany.ID}},
		}},
	})
	part := tmpl.Parts[0]
	slots := template.Fields(tmpl)
	require.Len(t, slots, 2)

	subject := f.evidence(t, &template.Template{ID: tmpl.ID, Parts: []template.Part{{
		ID: part.ID, Source: part.Source,
		Predicate: template.Role{NodeType: template.NodeTypeIs}, Object: template.Role{NodeType: template.NodeTypeIs},
	}}}, map[template.SlotKey]string{{PartID: part.ID, PartField: template.FieldSource}: "Einstein"})

	start, end := 10, 21
	fields := append(subject, relations.FieldInput{
		Type:      template.NodeTypeConcept,
		PartID:    part.ID,
		PartField: template.FieldPredicate,
		Position:  &relations.PositionInput{PositionType: "CO", StartOffset: &start, EndOffset: &end},
		Data:      &relations.EvidenceData{TokenIDs: "3,4,5", StringRep: "was born in"},
	})

	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{Fields: fields, OccursIn: textID}, userID)
	require.NoError(t, err)
	assert.Equal(t, "Einstein was born in Germany", set.Expression)
	require.Len(t, set.TerminalNodes, 2)
	assert.Equal(t, "Germany", set.TerminalNodes[1].Label)

	pred, err := f.db.GetAppellation(ctx, set.Relations[0].PredicateID)
	require.NoError(t, err)
	assert.Equal(t, "3,4,5", pred.TokenIDs)
	assert.NotNil(t, pred.PositionID)
	assert.True(t, pred.AsPredicate)

	obj, err := f.db.GetAppellation(ctx, set.Relations[0].Object.ID)
	require.NoError(t, err)
	assert.Empty(t, obj.TokenIDs)
	assert.False(t, obj.AsPredicate)
	require.NotNil(t, obj.InterpretationID)
	assert.Equal(t, germany.ID, *obj.InterpretationID)
}

func TestTemporalRelations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p0, p1 := f.simplePart(0), f.simplePart(1)
	p1.Source = relationTo(0)
	tmpl := f.create(t, &template.Template{Name: "Event", Parts: []template.Part{p0, p1}})

	occurred := &model.DateAppellation{Year: 1915, Month: 11, Day: 25, CreatedBy: userID, TextID: textID}
	require.NoError(t, f.db.CreateDateAppellation(ctx, occurred, nil))

	set, err := f.engine.CreateRelationSet(ctx, tmpl.ID, relations.RelationSetInput{
		Fields:   f.evidence(t, tmpl, nil),
		OccursIn: textID,
		Start:    &relations.TemporalInput{Year: 1905},
		Occur:    &relations.TemporalInput{Appellation: &relations.EvidenceRef{ID: occurred.ID}},
	}, userID)
	require.NoError(t, err)
	require.Len(t, set.Relations, 4)

	inner, _ := tmpl.PartByInternalID(1)
	var root model.Relation
	for _, r := range set.Relations[:2] {
		if *r.TemplatePartID == inner.ID {
			root = r
		}
	}
	require.NotZero(t, root.ID, "part 1 depends on part 0 and is the root")

	startRel, occurRel := set.Relations[2], set.Relations[3]
	for _, r := range []model.Relation{startRel, occurRel} {
		assert.Nil(t, r.TemplatePartID)
		assert.Equal(t, model.Node{Kind: model.NodeRelation, ID: root.ID}, r.Source)
		assert.Equal(t, model.NodeDateAppellation, r.Object.Kind)
	}
	assert.Equal(t, occurred.ID, occurRel.Object.ID)

	startDate, err := f.db.GetDateAppellation(ctx, startRel.Object.ID)
	require.NoError(t, err)
	assert.Equal(t, "1905", startDate.DateRepresentation())

	pred, err := f.db.GetAppellation(ctx, startRel.PredicateID)
	require.NoError(t, err)
	assert.Equal(t, testConcepts.Start.URI, pred.Interpretation.URI)
}

func TestInstantiationRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tmpl := f.create(t, &template.Template{Name: "Identity", Parts: []template.Part{f.simplePart(0)}})
	fields := f.evidence(t, tmpl, nil)

	tests := []struct {
		name        string
		in          relations.RelationSetInput
		invalidData bool
	}{
		{
			name:        "temporal without year",
			in:          relations.RelationSetInput{Fields: fields, OccursIn: textID, End: &relations.TemporalInput{Month: 3}},
			invalidData: true,
		},
		{
			name: "unknown appellation",
			in: relations.RelationSetInput{OccursIn: textID, Fields: []relations.FieldInput{
				fields[0],
				{PartID: fields[1].PartID, PartField: fields[1].PartField, Appellation: &relations.EvidenceRef{ID: 9999}},
			}},
		},
		{
			name: "type slot without appellation",
			in: relations.RelationSetInput{OccursIn: textID, Fields: []relations.FieldInput{
				fields[0],
				{PartID: fields[1].PartID, PartField: fields[1].PartField},
			}},
			invalidData: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateRelationSet(ctx, tmpl.ID, tt.in, userID)
			require.Error(t, err)
			assert.Equal(t, tt.invalidData, relations.IsInvalidData(err))

			sets, err := f.db.ListRelationSets(ctx, database.RelationSetFilter{})
			require.NoError(t, err)
			assert.Empty(t, sets)

			_, err = f.db.GetConceptByURI(ctx, testConcepts.Is.URI)
			assert.ErrorIs(t, err, database.ErrNotFound, "well-known concept created in the failed call is gone")
		})
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	p0, p1 := f.simplePart(0), f.simplePart(1)
	p0.Object = relationTo(1)
	p1.Object = relationTo(0)

	tests := []struct {
		name string
		tmpl *template.Template
		msg  string
	}{
		{"cycle", &template.Template{Name: "c", Parts: []template.Part{p0, p1}}, template.MsgCyclic},
		{"terminal nodes", &template.Template{Name: "t", TerminalNodes: "abc", Parts: []template.Part{f.simplePart(0)}}, template.MsgInvalidTerminalNodes},
		{"no parts", &template.Template{Name: "e"}, "Template has no parts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateTemplate(ctx, tt.tmpl)
			require.Error(t, err)
			assert.True(t, template.IsInvalidTemplate(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	list, err := f.db.ListTemplates(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestValidateTemplateChecksRoles(t *testing.T) {
	f := setup(t)
	isSource := f.simplePart(0)
	isSource.Source = template.Role{NodeType: template.NodeTypeIs}

	tests := []struct {
		name string
		tmpl *template.Template
		msg  string
	}{
		{"no parts", &template.Template{Name: "e"}, "Template has no parts"},
		{"duplicate internal id", &template.Template{Name: "d", Parts: []template.Part{f.simplePart(0), f.simplePart(0)}}, "duplicate internal id 0"},
		{"predicate type as source", &template.Template{Name: "s", Parts: []template.Part{isSource}}, `part 0: node type "IS" is not allowed for source`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, template.Validate(tt.tmpl), "structurally valid")
			err := f.engine.ValidateTemplate(tt.tmpl)
			require.Error(t, err)
			assert.True(t, template.IsInvalidTemplate(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestCreateTemplateIsAllOrNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	good := f.simplePart(0)
	bad := f.simplePart(1)
	bad.Source = template.Role{NodeType: template.NodeTypeType, Type: &template.Ref{ID: 9999}}

	_, err := f.engine.CreateTemplate(ctx, &template.Template{Name: "broken", Parts: []template.Part{good, bad}})
	require.Error(t, err)
	assert.False(t, template.IsInvalidTemplate(err))

	list, err := f.db.ListTemplates(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUnknownTemplate(t *testing.T) {
	f := setup(t)
	_, err := f.engine.CreateRelationSet(context.Background(), 4242, relations.RelationSetInput{OccursIn: textID}, userID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
