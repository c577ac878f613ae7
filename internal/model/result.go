package model

// MultiSystemResult aggregates the outcome of analyzing all four subsystems.
// It is built fresh per analysis run and never persisted directly.
type MultiSystemResult struct {
	Systems     map[int][]*Match
	BestMatches map[int]*Match

	TotalSystemsAnalyzed int
	TotalMatchesFound    int

	Recommendations []string
	Warnings        []string
}

// NewMultiSystemResult returns an empty result ready to accumulate.
func NewMultiSystemResult() *MultiSystemResult {
	return &MultiSystemResult{
		Systems:     make(map[int][]*Match),
		BestMatches: make(map[int]*Match),
	}
}

// AutoPopulateResult reports what the auto-population service did for one
// configuration match.
type AutoPopulateResult struct {
	Success bool
	Message string

	AddedEquipment        []Item
	SkippedEquipment      []Item
	RequiresUserSelection []Item

	// DatabasePayload is the flat field-value mapping handed to the
	// persistence writer, keyed per the legacy schema contract.
	DatabasePayload map[string]any

	Errors []string
}
