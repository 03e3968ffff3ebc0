package sqlstore

import "encoding/json"

// Tagged-list and tagged-map columns (tags, domainTags, events,
// expertiseTags, ...) are stored as a JSON-encoded TEXT column in
// both backends and decoded only at the repository boundary, per the
// "dynamic opaque JSON fields" guidance of — callers
// above this package never see raw JSON.

func encodeStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var ss []string
	_ = json.Unmarshal([]byte(raw), &ss)
	return ss
}

func encodeFloatMap(m map[string]float64) string {
	if m == nil {
		m = map[string]float64{}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func decodeFloatMap(raw string) map[string]float64 {
	m := map[string]float64{}
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}
