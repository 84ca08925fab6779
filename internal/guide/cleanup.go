package guide

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("no valid JSON found in response")

// cleanJSON strips the wrapping models like to add around JSON: code fences,
// a leading "json" tag and any prose before or after the outermost object.
func cleanJSON(response string) string {
	s := strings.TrimSpace(response)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// decodeJSON unmarshals a model response into v, cleaning it first when the
// raw text is not valid JSON.
func decodeJSON(response string, v any) error {
	if err := json.Unmarshal([]byte(response), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(cleanJSON(response)), v); err != nil {
		return errNoJSON
	}
	return nil
}
