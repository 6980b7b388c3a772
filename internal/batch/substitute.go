package batch

import "github.com/fyrsmithlabs/focusd/internal/bridge"

// substitute returns a copy of payload with resolved temp ids written into
// the bridge's reference fields. A reference field holding a string equal to
// a key of ids gets the real id; list reference fields are rewritten item by
// item. Every other field, including names and notes that happen to match a
// temp id, is copied unchanged.
func substitute(payload map[string]any, ids map[string]string) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, key := range bridge.ReferenceFields {
		if s, ok := out[key].(string); ok {
			if real, ok := ids[s]; ok {
				out[key] = real
			}
		}
	}
	for _, key := range bridge.ReferenceListFields {
		if v, ok := out[key]; ok {
			out[key] = substituteList(v, ids)
		}
	}
	return out
}

func substituteList(v any, ids map[string]string) any {
	switch list := v.(type) {
	case []any:
		out := make([]any, len(list))
		for i, item := range list {
			if s, ok := item.(string); ok {
				if real, ok := ids[s]; ok {
					item = real
				}
			}
			out[i] = item
		}
		return out
	case []string:
		out := make([]string, len(list))
		for i, s := range list {
			if real, ok := ids[s]; ok {
				s = real
			}
			out[i] = s
		}
		return out
	}
	return v
}
