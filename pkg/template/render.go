package template

import "strings"

// Missing stands in for keys that cannot be resolved when rendering.
const Missing = "[missing]"

// RenderExpression fills the placeholders of expr using resolve. Keys that do
// not parse, or that resolve reports as unknown, are rendered as Missing. An
// expression that does not parse at all is returned unchanged.
func RenderExpression(expr string, resolve func(Key) (string, bool)) string {
	segs, err := parseExpression(expr)
	if err != nil {
		return expr
	}
	var b strings.Builder
	for _, s := range segs {
		if !s.placeholder {
			b.WriteString(s.text)
			continue
		}
		k, err := ParseKey(s.text, -1)
		if err != nil {
			b.WriteString(Missing)
			continue
		}
		v, ok := resolve(k)
		if !ok {
			b.WriteString(Missing)
			continue
		}
		b.WriteString(v)
	}
	return b.String()
}

// TerminalKeys parses a terminal-node list leniently, dropping malformed
// tokens.
func TerminalKeys(s string) []Key {
	var keys []Key
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if k, err := ParseKey(tok, -1); err == nil {
			keys = append(keys, k)
		}
	}
	return keys
}
