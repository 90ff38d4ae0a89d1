// Package trends fetches search-interest time series from an external
// trends provider and extracts weekly value sequences from its
// free-form payloads.
package trends

import "time"

// partialFlagColumn marks the provider's trailing partial-period flag;
// it is never a data column.
const partialFlagColumn = "isPartial"

// Payload is one raw interest-over-time response. Records arrive
// oldest period first, each a column-name to value mapping whose shape
// the provider controls.
type Payload struct {
	Keyword   string           `json:"keyword"`
	Geo       string           `json:"geo"`
	Timeframe string           `json:"timeframe"`
	FetchedAt time.Time        `json:"fetched_at"`
	Columns   []string         `json:"columns,omitempty"`
	Data      []map[string]any `json:"data"`
}
