package template

import (
	"errors"
	"fmt"
)

// InvalidTemplateError reports a malformed or structurally invalid template.
type InvalidTemplateError struct {
	Message string
}

func (e *InvalidTemplateError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &InvalidTemplateError{Message: msg}
}

func invalidf(format string, args ...any) error {
	return &InvalidTemplateError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidTemplate reports whether err is, or wraps, an InvalidTemplateError.
func IsInvalidTemplate(err error) bool {
	var target *InvalidTemplateError
	return errors.As(err, &target)
}

const (
	MsgInvalidTerminalNodes = "Invalid pattern for terminal nodes"
	MsgInvalidExpression    = "Invalid expression pattern"
	MsgExpressionKeyLength  = "Each key in the expression must be precisely two characters long"
	MsgSelfLoops            = "Relation structure contains self-loops"
	MsgCyclic               = "Relation structure is cyclic or disconnected"
)

// Validate checks a template and its parts before anything is persisted.
// The checks run in order: terminal nodes, expression, self-loops, cycles.
func Validate(t *Template) error {
	n := len(t.Parts)

	if _, err := ParseTerminalNodes(t.TerminalNodes, n); err != nil {
		return invalid(MsgInvalidTerminalNodes)
	}

	if err := validateExpression(t.Expression, n); err != nil {
		return err
	}

	g := GraphFromPayload(t.Parts)
	if len(g.SelfLoops()) > 0 {
		return invalid(MsgSelfLoops)
	}
	if !g.IsDAG() {
		return invalid(MsgCyclic)
	}
	return nil
}

func validateExpression(expr string, n int) error {
	keys, err := ExpressionKeys(expr)
	if err != nil {
		return invalid(MsgInvalidExpression)
	}
	for _, k := range keys {
		if len(k) != 2 {
			return invalid(MsgExpressionKeyLength)
		}
		if _, err := ParseKey(k, n); err != nil {
			return invalid(MsgInvalidExpression)
		}
	}
	return nil
}

// CheckRoles reports duplicate internal ids, node types that are not allowed
// for their role and relation roles without a valid target.
func CheckRoles(parts []Part) error {
	if len(parts) == 0 {
		return invalid("Template has no parts")
	}
	ids := make(map[int]bool, len(parts))
	for _, p := range parts {
		if ids[p.InternalID] {
			return invalidf("duplicate internal id %d", p.InternalID)
		}
		ids[p.InternalID] = true
	}
	for _, p := range parts {
		for _, f := range AllFields {
			role := p.Role(f)
			if !role.NodeType.Valid(f) {
				return invalidf("part %d: node type %q is not allowed for %s", p.InternalID, role.NodeType, f)
			}
			if role.NodeType != NodeTypeRelation {
				continue
			}
			if role.RelationInternalID == nil {
				return invalidf("part %d: %s is a relation without a target part", p.InternalID, f)
			}
			if !ids[*role.RelationInternalID] {
				return invalidf("part %d: %s refers to unknown part %d", p.InternalID, f, *role.RelationInternalID)
			}
		}
	}
	return nil
}
