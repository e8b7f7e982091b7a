package llm

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// DecodeObject extracts the first JSON object from raw, tolerating code
// fences and surrounding prose, and unmarshals it into dest.
func DecodeObject(raw string, dest any) error {
	body := stripFences(raw)

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object in reply", ErrMalformed)
	}

	if err := sonic.UnmarshalString(body[start:end+1], dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// String returns a trimmed string from a decoded JSON value. Anything that is
// not a non-empty string (null, numbers, the literals "null" and "n/a") counts
// as absent. "None" is a real answer, e.g. for family members.
func String(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "n/a":
		return ""
	}
	return s
}

// Int returns a positive integer from a decoded JSON value.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n >= 1 && n == float64(int(n)) {
			return int(n), true
		}
	case int64:
		if n >= 1 {
			return int(n), true
		}
	case string:
		var i int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &i); err == nil && i >= 1 {
			return i, true
		}
	}
	return 0, false
}
