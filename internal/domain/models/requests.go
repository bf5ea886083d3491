package models

// StateTableRequest selects the tail of the live table.
type StateTableRequest struct {
	Last   int    `query:"last" default:"0" validate:"gte=0,lte=10000"`
	Format string `query:"format" default:"json" validate:"oneof=json csv"`
}

// RunTableRequest reads an exported run back from the quarter store.
type RunTableRequest struct {
	ID     string `param:"id" validate:"required,max=64"`
	Last   int    `query:"last" default:"0" validate:"gte=0,lte=10000"`
	Format string `query:"format" default:"json" validate:"oneof=json csv"`
}

// StateSummary is the body of GET /api/state.
type StateSummary struct {
	RunID     string             `json:"run_id"`
	Mode      string             `json:"mode"`
	Phase     string             `json:"phase"`
	Quarters  int                `json:"quarters"`
	Remaining int                `json:"remaining"`
	Latest    map[string]float64 `json:"latest"`
}
