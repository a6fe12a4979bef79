package domain

// Variant is the assignment a flag resolved to for a subject.
type Variant struct {
	Key      string         `json:"key,omitempty"`
	Value    string         `json:"value,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Variants maps flag keys to their assigned variant.
type Variants map[string]Variant

// Clone returns a deep copy. Payload and Metadata values are copied when they
// are JSON-shaped (maps, slices); other values are shared.
func (v Variants) Clone() Variants {
	if v == nil {
		return nil
	}
	out := make(Variants, len(v))
	for k, variant := range v {
		variant.Payload = cloneValue(variant.Payload)
		if variant.Metadata != nil {
			variant.Metadata = cloneValue(variant.Metadata).(map[string]any)
		}
		out[k] = variant
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
