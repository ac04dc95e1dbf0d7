package template

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key addresses one role of one part in expression and terminal-node strings,
// e.g. "0s" is the source of the part with internal id 0.
type Key struct {
	Part  int
	Field Field
}

func (k Key) String() string {
	return strconv.Itoa(k.Part) + string(k.Field.Flag())
}

var (
	errKeyLength = errors.New("key must be precisely two characters long")
	errKeyPart   = errors.New("key does not start with a part id")
	errKeyFlag   = errors.New("key does not end with s, p or o")
	errKeyRange  = errors.New("key refers to a part that does not exist")
)

// ParseKey parses a single two-character key. When maxPart is not negative,
// part ids above it are rejected.
func ParseKey(s string, maxPart int) (Key, error) {
	if len(s) != 2 {
		return Key{}, errKeyLength
	}
	part, err := strconv.Atoi(s[:1])
	if err != nil {
		return Key{}, errKeyPart
	}
	field, ok := fieldFromFlag(s[1])
	if !ok {
		return Key{}, errKeyFlag
	}
	if maxPart >= 0 && part > maxPart {
		return Key{}, errKeyRange
	}
	return Key{Part: part, Field: field}, nil
}

// ParseTerminalNodes parses a comma-separated key list. An empty string
// yields no keys.
func ParseTerminalNodes(s string, maxPart int) ([]Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, ",")
	keys := make([]Key, 0, len(tokens))
	for _, tok := range tokens {
		k, err := ParseKey(strings.TrimSpace(tok), maxPart)
		if err != nil {
			return nil, fmt.Errorf("terminal node %q: %w", tok, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// segment is a piece of a parsed expression: either literal text or a
// placeholder name.
type segment struct {
	text        string
	placeholder bool
}

// parseExpression splits a brace-format string into literal and placeholder
// segments. "{{" and "}}" are literal braces; a placeholder name ends at the
// first '!' or ':'.
func parseExpression(expr string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch c {
		case '{':
			if i+1 < len(expr) && expr[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(expr[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("expected '}' before end of string")
			}
			body := expr[i+1 : i+1+end]
			if strings.ContainsRune(body, '{') {
				return nil, fmt.Errorf("unexpected '{' in field name")
			}
			if cut := strings.IndexAny(body, "!:"); cut >= 0 {
				body = body[:cut]
			}
			flush()
			segs = append(segs, segment{text: body, placeholder: true})
			i += end + 1
		case '}':
			if i+1 < len(expr) && expr[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("single '}' encountered in format string")
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

// ExpressionKeys returns the placeholder names of expr in order of appearance.
func ExpressionKeys(expr string) ([]string, error) {
	segs, err := parseExpression(expr)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, s := range segs {
		if s.placeholder {
			keys = append(keys, s.text)
		}
	}
	return keys, nil
}
