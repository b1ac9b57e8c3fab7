package parser

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// strategy extracts a decoded JSON value from text, or reports that it found none.
type strategy struct {
	name    string
	extract func(text string) (any, bool)
}

// strategies are tried in order; the first that yields usable candidates wins.
var strategies = []strategy{
	{name: "direct", extract: parseDirect},
	{name: "fenced", extract: parseFenced},
	{name: "scan", extract: scanBalanced},
}

var fencedBlock = regexp.MustCompile("(?s)```(?:[jJ][sS][oO][nN])?[ \t]*\r?\n?(.*?)```")

func decode(text string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

func parseDirect(text string) (any, bool) {
	return decode(strings.TrimSpace(text))
}

func parseFenced(text string) (any, bool) {
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		if v, ok := decode(strings.TrimSpace(m[1])); ok {
			return v, true
		}
	}
	return nil, false
}

// scanBalanced walks the text for balanced {...} or [...] regions and returns the
// first one that decodes and looks like a prediction. If none look like one, the
// first decodable region is returned so the validator can reject it.
func scanBalanced(text string) (any, bool) {
	var first any
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		end := matchingClose(text, i)
		if end < 0 {
			continue
		}
		v, ok := decode(text[i : end+1])
		if !ok {
			continue
		}
		if cands, ok := normalize(v); ok && resemblesPrediction(cands) {
			return v, true
		}
		if first == nil {
			first = v
		}
		i = end
	}
	return first, first != nil
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping over JSON string contents, or -1.
func matchingClose(text string, start int) int {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
