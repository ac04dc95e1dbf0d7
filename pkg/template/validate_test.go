package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func simplePart(id int) Part {
	return Part{
		InternalID: id,
		Source:     Role{NodeType: NodeTypeType},
		Predicate:  Role{NodeType: NodeTypeIs},
		Object:     Role{NodeType: NodeTypeType},
	}
}

func relationTo(id int) Role {
	return Role{NodeType: NodeTypeRelation, RelationInternalID: intp(id)}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    Template
		wantMsg string
	}{
		{
			name: "single part",
			tmpl: Template{TerminalNodes: "0s,0o", Expression: "{0s} {0p} {0o}", Parts: []Part{simplePart(0)}},
		},
		{
			name: "nested dag",
			tmpl: func() Template {
				p0, p1 := simplePart(0), simplePart(1)
				p0.Object = relationTo(1)
				return Template{TerminalNodes: "1s", Expression: "{0s} said {1s} {1p} {1o}", Parts: []Part{p0, p1}}
			}(),
		},
		{
			name: "empty terminal nodes and expression",
			tmpl: Template{Parts: []Part{simplePart(0)}},
		},
		{
			name:    "terminal nodes abc",
			tmpl:    Template{TerminalNodes: "abc", Parts: []Part{simplePart(0)}},
			wantMsg: MsgInvalidTerminalNodes,
		},
		{
			name:    "terminal node out of range",
			tmpl:    Template{TerminalNodes: "0s,5o", Parts: []Part{simplePart(0)}},
			wantMsg: MsgInvalidTerminalNodes,
		},
		{
			name:    "terminal node bad flag",
			tmpl:    Template{TerminalNodes: "0x", Parts: []Part{simplePart(0)}},
			wantMsg: MsgInvalidTerminalNodes,
		},
		{
			name:    "expression key too long",
			tmpl:    Template{Expression: "{0so}", Parts: []Part{simplePart(0)}},
			wantMsg: MsgExpressionKeyLength,
		},
		{
			name:    "expression key out of range",
			tmpl:    Template{Expression: "{7s}", Parts: []Part{simplePart(0)}},
			wantMsg: MsgInvalidExpression,
		},
		{
			name:    "expression unbalanced",
			tmpl:    Template{Expression: "{0s", Parts: []Part{simplePart(0)}},
			wantMsg: MsgInvalidExpression,
		},
		{
			name: "self loop",
			tmpl: func() Template {
				p := simplePart(0)
				p.Object = relationTo(0)
				return Template{Parts: []Part{p}}
			}(),
			wantMsg: MsgSelfLoops,
		},
		{
			name: "two part cycle",
			tmpl: func() Template {
				p0, p1 := simplePart(0), simplePart(1)
				p0.Object = relationTo(1)
				p1.Object = relationTo(0)
				return Template{Parts: []Part{p0, p1}}
			}(),
			wantMsg: MsgCyclic,
		},
		{
			name: "terminal nodes checked before cycles",
			tmpl: func() Template {
				p := simplePart(0)
				p.Source = relationTo(0)
				return Template{TerminalNodes: "abc", Parts: []Part{p}}
			}(),
			wantMsg: MsgInvalidTerminalNodes,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.tmpl)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsInvalidTemplate(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	p := simplePart(0)
	p.Object = relationTo(0)
	tmpl := &Template{Parts: []Part{p}}
	for i := 0; i < 3; i++ {
		assert.EqualError(t, Validate(tmpl), MsgSelfLoops)
	}
}

func TestCheckRoles(t *testing.T) {
	tests := []struct {
		name    string
		parts   []Part
		wantErr bool
	}{
		{"valid", []Part{simplePart(0)}, false},
		{"no parts", nil, true},
		{"duplicate internal id", []Part{simplePart(0), simplePart(0)}, true},
		{"relation predicate", []Part{func() Part { p := simplePart(0); p.Predicate = relationTo(0); return p }()}, true},
		{"is as source", []Part{func() Part { p := simplePart(0); p.Source = Role{NodeType: NodeTypeIs}; return p }()}, true},
		{"date predicate", []Part{func() Part { p := simplePart(0); p.Predicate = Role{NodeType: NodeTypeDate}; return p }()}, true},
		{"unknown node type", []Part{func() Part { p := simplePart(0); p.Object = Role{NodeType: "XX"}; return p }()}, true},
		{"relation without target", []Part{func() Part { p := simplePart(0); p.Object = Role{NodeType: NodeTypeRelation}; return p }()}, true},
		{"relation to unknown part", []Part{func() Part { p := simplePart(0); p.Object = relationTo(4); return p }()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRoles(tt.parts)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsInvalidTemplate(err))
		})
	}
}
