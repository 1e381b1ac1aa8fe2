// Package workflow implements the productization orchestrator: a state
// machine that sequences plan generation, execution, interactive review
// with instruction-driven rewriting, and finalization against the Sage
// backend. The UI layer is a pure renderer subscribed to the orchestrator's
// event stream; all workflow state lives here.
package workflow

import (
	"fmt"
	"time"

	"sageops/internal/sage"
)

// State represents the orchestrator's position in the workflow.
type State string

const (
	StateIdle            State = "idle"
	StateNeedsResearch   State = "needsResearch"
	StateRunningResearch State = "runningResearch"
	StateRunning         State = "running"
	StateReview          State = "review"
	StateFinalizing      State = "finalizing"
	StateFinalized       State = "finalized"
	StateError           State = "error"
)

// validNext is the transition table. Any move not listed here is a bug in
// the caller and is rejected by transition().
var validNext = map[State][]State{
	StateIdle:            {StateRunning, StateNeedsResearch},
	StateNeedsResearch:   {StateRunningResearch, StateRunning, StateIdle},
	StateRunningResearch: {StateRunning},
	StateRunning:         {StateReview, StateError},
	StateReview:          {StateFinalizing, StateIdle},
	StateFinalizing:      {StateFinalized, StateReview},
	StateFinalized:       {StateIdle},
	StateError:           {StateIdle},
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to State) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a caller requests a move the state
// machine does not allow from its current state.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid workflow transition %s -> %s", e.From, e.To)
}

// Busy reports whether the state has a remote call in flight that must not
// be re-triggered. Only one of these may be active per topic at a time.
func (s State) Busy() bool {
	return s == StateRunning || s == StateRunningResearch || s == StateFinalizing
}

// Document is the central mutable artifact during review: an ordered list
// of titled sections plus an optional sales page. Created atomically when
// execution succeeds; discarded on finalize-success or abandonment.
type Document struct {
	Sections       []sage.Section
	SalesPage      string
	QAStatus       string // pass/warn, informational only
	ResearchSource string // provenance, optional
}

// Clone returns a deep copy safe to hand to subscribers.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	copied := *d
	copied.Sections = make([]sage.Section, len(d.Sections))
	copy(copied.Sections, d.Sections)
	return &copied
}

// UnitRef identifies the smallest independently rewritable piece of the
// Document: one section by index, or the sales page.
type UnitRef struct {
	SalesPage bool
	Section   int // meaningful only when SalesPage is false
}

// SalesPageRef is the unit reference for the sales page slot.
var SalesPageRef = UnitRef{SalesPage: true}

// SectionRef returns the unit reference for a section index.
func SectionRef(i int) UnitRef {
	return UnitRef{Section: i}
}

func (u UnitRef) String() string {
	if u.SalesPage {
		return "salesPage"
	}
	return fmt.Sprintf("section[%d]", u.Section)
}

// Snapshot is an immutable view of orchestrator state handed to
// subscribers. The dashboard renders exclusively from snapshots.
type Snapshot struct {
	Topic         string
	State         State
	Message       string // transient operator-facing message, auto-clearing
	Document      *Document
	SavedLocation string

	// Rewrite sub-protocol status
	GlobalRewriteBusy bool
	BusyUnits         map[UnitRef]bool
	PendingInstr      map[UnitRef]string // retained on failure, cleared on success
	UnitErrors        map[UnitRef]string // per-unit failure messages
}

// Config holds per-orchestrator settings.
type Config struct {
	Market      string        // plan call market, e.g. "US"
	Price       string        // plan call price point, e.g. "$29"
	Sections    int           // requested section count for execute
	Language    string        // "auto" or a concrete tag
	ErrorWindow time.Duration // display window before error states auto-revert
}

// DefaultConfig mirrors the Sage backend's production defaults.
func DefaultConfig() Config {
	return Config{
		Market:      "US",
		Price:       "$29",
		Sections:    5,
		Language:    "auto",
		ErrorWindow: 7 * time.Second,
	}
}
