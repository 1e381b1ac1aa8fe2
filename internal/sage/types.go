package sage

// Section is one titled unit of a generated product. Order within the
// slice is document order and is preserved through all edits.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// QA classification values returned by the execute step. Informational
// only; finalize is never gated on them.
const (
	QAPass = "pass"
	QAWarn = "warn"
)

// ResearchCheckResult is the gate lookup response.
type ResearchCheckResult struct {
	HasResearch bool   `json:"hasResearch"`
	File        string `json:"file,omitempty"`
}

// ExecuteRequest carries everything the execute call needs. Plan is the
// opaque payload from the planning call, passed through unmodified.
type ExecuteRequest struct {
	Topic    string `json:"topic"`
	Plan     string `json:"plan"`
	Language string `json:"language"`
	Sections int    `json:"sections"`
}

// ExecuteResult is the decomposed product the execute call produces.
type ExecuteResult struct {
	Sections       []Section `json:"sections"`
	SalesPage      string    `json:"salesPage,omitempty"`
	QAStatus       string    `json:"qaStatus,omitempty"`
	ResearchSource string    `json:"researchSource,omitempty"`
}

// FinalizeRequest persists the reviewed product.
type FinalizeRequest struct {
	Topic     string    `json:"topic"`
	Sections  []Section `json:"sections"`
	SalesPage string    `json:"salesPage,omitempty"`
}

// SavedProduct is a previously finalized product loaded back from the
// backend content store.
type SavedProduct struct {
	Sections  []Section `json:"sections"`
	SalesPage string    `json:"salesPage,omitempty"`
}
