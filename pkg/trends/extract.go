package trends

import (
	"encoding/json"
	"sort"
)

// extractStrategy pulls a numeric value out of one period record.
// Strategies are tried in order; the first hit wins.
type extractStrategy func(record map[string]any, keyword string, columns []string) (float64, bool)

var extractStrategies = []extractStrategy{
	keywordColumn,
	firstNumericColumn,
}

// Extract turns a raw payload into an ordered value sequence, most
// recent period first. Records that yield no numeric value contribute
// nothing, so the result may be shorter than the period count. A nil
// or empty payload yields an empty sequence; Extract never fails.
func Extract(p *Payload, keyword string) []float64 {
	if p == nil || len(p.Data) == 0 {
		return nil
	}

	values := make([]float64, 0, len(p.Data))
	for _, record := range p.Data {
		cols := columnOrder(p, record)
		for _, strat := range extractStrategies {
			if v, ok := strat(record, keyword, cols); ok {
				values = append(values, v)
				break
			}
		}
	}

	// Provider order is oldest first; callers want most recent first.
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values
}

// columnOrder fixes the fallback scan order: the payload's declared
// columns when present, otherwise the record's keys sorted. Go map
// iteration alone would make the fallback nondeterministic.
func columnOrder(p *Payload, record map[string]any) []string {
	if len(p.Columns) > 0 {
		return p.Columns
	}
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// keywordColumn reads the column named after the query keyword.
func keywordColumn(record map[string]any, keyword string, _ []string) (float64, bool) {
	if keyword == "" {
		return 0, false
	}
	v, ok := record[keyword]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// firstNumericColumn falls back to the first numeric field that is not
// the partial-period flag.
func firstNumericColumn(record map[string]any, _ string, columns []string) (float64, bool) {
	for _, key := range columns {
		if key == partialFlagColumn {
			continue
		}
		if f, ok := asFloat(record[key]); ok {
			return f, true
		}
	}
	return 0, false
}

// asFloat coerces the numeric shapes a decoded JSON record can carry.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
