package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls in [From, To).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// SummaryRequest requests aggregated conversation metrics.
// An empty Sector aggregates across all sectors.
type SummaryRequest struct {
	Range  TimeRange `json:"range"`
	Sector string    `json:"sector,omitempty"`
}

// SectorSummary aggregates the conversations started in one sector
// during the requested range. Counts are by current status; transfers
// attribute a conversation to its current sector, not its first one.
type SectorSummary struct {
	Sector string `json:"sector"`

	Total      int `json:"total"`
	Waiting    int `json:"waiting"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Archived   int `json:"archived"`

	// AverageHandlingMs averages handling duration over conversations
	// resolved at least once. Zero when none were resolved.
	AverageHandlingMs int64 `json:"average_handling_ms"`
}

type Summary struct {
	Range   TimeRange       `json:"range"`
	Sectors []SectorSummary `json:"sectors"`
}
