package llm

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ExtractJSON locates and parses the JSON object embedded in raw model
// output. Attempts, in order: the whole text, the first fenced code block,
// the greedy span from the first '{' to the last '}', and finally a
// balanced-brace scan. Values that parse but are not objects do not match.
func ExtractJSON(raw string) (map[string]interface{}, error) {
	text := strings.TrimSpace(raw)

	if obj, ok := parseObject(text); ok {
		return obj, nil
	}

	if m := fencedBlock.FindStringSubmatch(text); len(m) > 1 {
		if obj, ok := parseObject(m[1]); ok {
			return obj, nil
		}
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if obj, ok := parseObject(text[start : end+1]); ok {
			return obj, nil
		}
	}

	if obj, ok := scanBalanced(text); ok {
		return obj, nil
	}

	return nil, newExtractionError(raw)
}

// parseObject decodes s as exactly one JSON object, keeping numbers as
// json.Number so the result round-trips the source text.
func parseObject(s string) (map[string]interface{}, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// Reject trailing content after the object.
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return obj, true
}

// maxBalancedCandidates caps the number of balanced spans decoded by
// scanBalanced, keeping the scan linear in practice on brace-heavy prose.
const maxBalancedCandidates = 64

// scanBalanced tries each '{' in turn, matching braces outside string
// literals, and returns the first balanced span that parses as an object.
// At most maxBalancedCandidates spans are decoded.
func scanBalanced(s string) (map[string]interface{}, bool) {
	attempts := 0
	for i := 0; i < len(s) && attempts < maxBalancedCandidates; i++ {
		if s[i] != '{' {
			continue
		}
		level := 0
		inString := false
		escaped := false
	scan:
		for j := i; j < len(s); j++ {
			c := s[j]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					level++
				}
			case '}':
				if !inString {
					level--
					if level == 0 {
						attempts++
						if obj, ok := parseObject(s[i : j+1]); ok {
							return obj, true
						}
						break scan
					}
				}
			}
		}
	}
	return nil, false
}
