package builder

import (
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/pyrite/internal/nodes"
)

func (c *converter) constant(ts *sitter.Node, v any) *nodes.Node {
	n := c.node(nodes.Const, ts)
	n.Literal = v
	return n
}

// number converts numeric and keyword literals. Complex numbers and
// integers outside int64 become Empty.
func (c *converter) number(ts *sitter.Node) *nodes.Node {
	switch ts.Type() {
	case "true":
		return c.constant(ts, true)
	case "false":
		return c.constant(ts, false)
	case "none":
		return c.constant(ts, nil)
	case "ellipsis":
		return c.constant(ts, nodes.Ellipsis{})
	}

	text := strings.ReplaceAll(c.text(ts), "_", "")
	if strings.HasSuffix(text, "j") || strings.HasSuffix(text, "J") {
		return c.empty(ts)
	}
	if ts.Type() == "integer" {
		text = strings.TrimRight(text, "lL")
		if v, err := strconv.ParseInt(text, 0, 64); err == nil {
			return c.constant(ts, v)
		}
		// Python allows leading zeros in "00".
		if strings.Trim(text, "0") == "" {
			return c.constant(ts, int64(0))
		}
		return c.empty(ts)
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return c.constant(ts, v)
	}
	return c.empty(ts)
}

// str converts string literals. Implicit concatenation joins the parts;
// any interpolated part makes the whole literal a JoinedStr.
func (c *converter) str(ts *sitter.Node) *nodes.Node {
	parts := []*sitter.Node{ts}
	if ts.Type() == "concatenated_string" {
		parts = namedChildren(ts)
	}

	var sb strings.Builder
	isBytes := false
	for _, p := range parts {
		if hasInterpolation(p) {
			return c.node(nodes.JoinedStr, ts)
		}
		val, b := decodeString(c.text(p))
		isBytes = isBytes || b
		sb.WriteString(val)
	}
	if isBytes {
		return c.constant(ts, nodes.Bytes(sb.String()))
	}
	return c.constant(ts, sb.String())
}

func hasInterpolation(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "interpolation" {
			return true
		}
	}
	return false
}

// decodeString strips the prefix and quotes of a Python string literal and
// resolves escapes unless the literal is raw. It reports whether the
// literal is a bytes literal.
func decodeString(lit string) (string, bool) {
	i := 0
	for i < len(lit) && lit[i] != '\'' && lit[i] != '"' {
		i++
	}
	prefix := strings.ToLower(lit[:i])
	body := lit[i:]
	raw := strings.Contains(prefix, "r")
	isBytes := strings.Contains(prefix, "b")

	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			body = body[len(q) : len(body)-len(q)]
			break
		}
	}
	if raw {
		return body, isBytes
	}
	return unescape(body), isBytes
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for len(s) > 0 {
		if s[0] != '\\' || len(s) == 1 {
			r, size := utf8.DecodeRuneInString(s)
			sb.WriteRune(r)
			s = s[size:]
			continue
		}
		switch s[1] {
		case '\n':
			s = s[2:]
			continue
		case 'n', 't', 'r', 'a', 'b', 'f', 'v', '\\', '\'', '"', 'x', 'u', 'U', '0', '1', '2', '3', '4', '5', '6', '7':
			if s[1] == '\'' {
				// strconv.UnquoteChar only accepts the escaped quote it is told about.
				sb.WriteByte('\'')
				s = s[2:]
				continue
			}
			r, _, tail, err := strconv.UnquoteChar(s, '"')
			if err == nil {
				sb.WriteRune(r)
				s = tail
				continue
			}
		}
		// Unknown escapes are kept verbatim, as in Python.
		sb.WriteByte('\\')
		s = s[1:]
	}
	return sb.String()
}
