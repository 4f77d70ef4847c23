package review

import (
	"bytes"
	"encoding/json"
	"strings"
)

// decodeVariant decodes a payload that is either a JSON object or a string.
// Objects, and strings that themselves contain a JSON object (optionally in a
// markdown code fence), are decoded into structured and reported with ok=true.
// Anything else is returned as text.
func decodeVariant(data []byte, structured any) (text string, ok bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false, nil
	}

	switch data[0] {
	case '{':
		if err := json.Unmarshal(data, structured); err != nil {
			return "", false, err
		}
		return "", true, nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false, err
		}
		if obj := EmbeddedJSON(s); obj != nil {
			if json.Unmarshal(obj, structured) == nil {
				return "", true, nil
			}
		}
		return s, false, nil
	default:
		return string(data), false, nil
	}
}

// EmbeddedJSON returns the JSON object held in text, handling markdown code
// blocks. It returns nil when text does not look like an object.
func EmbeddedJSON(text string) []byte {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		if endIdx < 1 {
			return nil
		}
		text = strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
	}

	if !strings.HasPrefix(text, "{") || !json.Valid([]byte(text)) {
		return nil
	}
	return []byte(text)
}
