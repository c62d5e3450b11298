package lifecycle

import "encoding/json"

// mergeJSON deep-merges patch onto base per spec.md 4.F's Patch pipeline:
// a null in patch preserves base's value, a non-null overrides it, and
// nested objects merge recursively rather than replacing wholesale. This
// is deliberately not RFC 7396 JSON Merge Patch, whose null means delete —
// no library in the retrieval pack implements this "null preserves"
// variant, so it is hand-rolled over encoding/json.
func mergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	var b map[string]any
	if len(base) > 0 {
		if err := json.Unmarshal(base, &b); err != nil {
			return nil, err
		}
	}
	if b == nil {
		b = map[string]any{}
	}
	var p map[string]any
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, &p); err != nil {
			return nil, err
		}
	}
	return json.Marshal(deepMerge(b, p))
}

func deepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			continue
		}
		if pm, ok := v.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(bm, pm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
