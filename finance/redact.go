package finance

import "strings"

// sensitiveKeys are redacted before any payload reaches a log line.
var sensitiveKeys = map[string]bool{
	"ssn":                  true,
	"socialsecuritynumber": true,
	"accountnumber":        true,
	"routingnumber":        true,
	"password":             true,
	"access_token":         true,
}

// Redact returns a deep copy of m with sensitive values masked down to their
// last four characters. The input is never modified.
func Redact(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = mask(v)
			continue
		}
		switch vv := v.(type) {
		case map[string]any:
			out[k] = Redact(vv)
		case []any:
			items := make([]any, len(vv))
			for i, item := range vv {
				if im, ok := item.(map[string]any); ok {
					items[i] = Redact(im)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

func mask(v any) string {
	s, ok := v.(string)
	if !ok || len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
