package mapping

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is a parsed candidate location inside a decoded JSON tree.
//
// Supported forms: team.displayName, children[0].standings, children.0.standings,
// stats["vs. Div."] and cells[3].
type Path struct {
	raw      string
	segments []segment
}

type segment struct {
	key     string
	index   int
	isIndex bool
}

func (p Path) String() string { return p.raw }

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func ParsePath(raw string) (Path, error) {
	p := Path{raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return p, fmt.Errorf("empty path")
	}

	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '.':
			if i == 0 || i == len(s)-1 || s[i+1] == '.' {
				return p, fmt.Errorf("path %q: empty segment at %d", raw, i)
			}
			i++
		case c == '[':
			seg, next, err := parseBracket(s, i)
			if err != nil {
				return p, fmt.Errorf("path %q: %w", raw, err)
			}
			p.segments = append(p.segments, seg)
			i = next
		default:
			start := i
			for i < len(s) && s[i] != '.' && s[i] != '[' {
				i++
			}
			p.segments = append(p.segments, segment{key: s[start:i]})
		}
	}
	return p, nil
}

func parseBracket(s string, open int) (segment, int, error) {
	i := open + 1
	if i >= len(s) {
		return segment{}, 0, fmt.Errorf("unterminated bracket at %d", open)
	}

	if quote := s[i]; quote == '"' || quote == '\'' {
		end := strings.IndexByte(s[i+1:], quote)
		if end < 0 {
			return segment{}, 0, fmt.Errorf("unterminated quoted key at %d", open)
		}
		key := s[i+1 : i+1+end]
		closeAt := i + 1 + end + 1
		if closeAt >= len(s) || s[closeAt] != ']' {
			return segment{}, 0, fmt.Errorf("expected ] after quoted key at %d", open)
		}
		return segment{key: key}, closeAt + 1, nil
	}

	end := strings.IndexByte(s[i:], ']')
	if end < 0 {
		return segment{}, 0, fmt.Errorf("unterminated bracket at %d", open)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(s[i : i+end]))
	if err != nil || idx < 0 {
		return segment{}, 0, fmt.Errorf("invalid index %q at %d", s[i:i+end], open)
	}
	return segment{index: idx, isIndex: true}, i + end + 1, nil
}

// Resolve walks root along p. ok is false when any step is missing or has the
// wrong container type; a present JSON null resolves to (nil, true).
func Resolve(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p.segments {
		switch node := cur.(type) {
		case map[string]any:
			if seg.isIndex {
				return nil, false
			}
			next, ok := node[seg.key]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx := seg.index
			if !seg.isIndex {
				n, err := strconv.Atoi(seg.key)
				if err != nil {
					return nil, false
				}
				idx = n
			}
			if idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Lookup returns the scalar at p. Absent paths, nulls, objects and arrays all
// count as not defined; zero values and empty strings are defined.
func Lookup(root any, p Path) (any, bool) {
	v, ok := Resolve(root, p)
	if !ok || !isScalar(v) {
		return nil, false
	}
	return v, true
}

// LookupString is a convenience for adapters reading identifiers out of a tree.
func LookupString(root any, raw string) string {
	v, ok := Lookup(root, MustParsePath(raw))
	if !ok {
		return ""
	}
	s, err := coerceString(v)
	if err != nil {
		return ""
	}
	return s
}

// LookupMap returns the object at raw, or nil.
func LookupMap(root any, raw string) map[string]any {
	v, ok := Resolve(root, MustParsePath(raw))
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// LookupSlice returns the array at raw, or nil.
func LookupSlice(root any, raw string) []any {
	v, ok := Resolve(root, MustParsePath(raw))
	if !ok {
		return nil
	}
	arr, _ := v.([]any)
	return arr
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, map[string]any, []any:
		return false
	default:
		return true
	}
}
