package workflow

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sageops/internal/gate"
	"sageops/internal/logging"
	"sageops/internal/sage"
)

// Orchestrator owns one workflow instance per topic at a time. All remote
// calls are made from the caller's goroutine; state mutation happens under
// a single mutex and every applied result is guarded by the run identifier
// captured when the call was issued, so late responses after an abandon or
// topic change are ignored.
type Orchestrator struct {
	client sage.Client
	gate   *gate.Gate
	cfg    Config

	mu            sync.Mutex
	state         State
	topic         string
	runID         string // rotates on every new run / abandon / topic change
	plan          string // opaque plan payload, held between plan and execute
	doc           *Document
	message       string
	savedLocation string

	// Rewrite sub-protocol bookkeeping
	globalBusy   bool
	busyUnits    map[UnitRef]bool
	pendingInstr map[UnitRef]string
	unitErrors   map[UnitRef]string

	// Message/error auto-revert
	revertGen int

	subscribers []chan Snapshot
	closed      bool
}

// New creates an orchestrator over the given client and gate.
func New(client sage.Client, g *gate.Gate, cfg Config) *Orchestrator {
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = DefaultConfig().ErrorWindow
	}
	if cfg.Sections <= 0 {
		cfg.Sections = DefaultConfig().Sections
	}
	return &Orchestrator{
		client:       client,
		gate:         g,
		cfg:          cfg,
		state:        StateIdle,
		runID:        uuid.NewString(),
		busyUnits:    make(map[UnitRef]bool),
		pendingInstr: make(map[UnitRef]string),
		unitErrors:   make(map[UnitRef]string),
	}
}

// Subscribe registers a listener for state snapshots. The channel is
// buffered; if a subscriber falls behind, intermediate snapshots are
// dropped in favor of newer ones.
func (o *Orchestrator) Subscribe() <-chan Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan Snapshot, 16)
	o.subscribers = append(o.subscribers, ch)
	return ch
}

// Close shuts down subscriber channels. Remote calls already in flight are
// not aborted; their results are discarded by the run-ID guard.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.runID = uuid.NewString()
	for _, ch := range o.subscribers {
		close(ch)
	}
	o.subscribers = nil
}

// Snapshot returns the current state for rendering.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// State returns the current workflow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	busy := make(map[UnitRef]bool, len(o.busyUnits))
	for k, v := range o.busyUnits {
		busy[k] = v
	}
	pending := make(map[UnitRef]string, len(o.pendingInstr))
	for k, v := range o.pendingInstr {
		pending[k] = v
	}
	unitErrs := make(map[UnitRef]string, len(o.unitErrors))
	for k, v := range o.unitErrors {
		unitErrs[k] = v
	}
	return Snapshot{
		Topic:             o.topic,
		State:             o.state,
		Message:           o.message,
		Document:          o.doc.Clone(),
		SavedLocation:     o.savedLocation,
		GlobalRewriteBusy: o.globalBusy,
		BusyUnits:         busy,
		PendingInstr:      pending,
		UnitErrors:        unitErrs,
	}
}

// emitLocked publishes the current snapshot to all subscribers. Callers
// must hold o.mu.
func (o *Orchestrator) emitLocked() {
	if o.closed {
		return
	}
	snap := o.snapshotLocked()
	for _, ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// transitionLocked moves the state machine, rejecting illegal moves.
// Callers must hold o.mu.
func (o *Orchestrator) transitionLocked(to State) error {
	if !canTransition(o.state, to) {
		return &ErrInvalidTransition{From: o.state, To: to}
	}
	logging.Workflow("transition %s -> %s (topic=%q run=%s)", o.state, to, o.topic, o.runID)
	o.state = to
	return nil
}

// SetTopic records a topic edit. It forwards to the gate (debounced) and,
// if the topic actually changed, invalidates any workflow for the previous
// topic: the run ID rotates so late responses are discarded, and any
// document is dropped.
func (o *Orchestrator) SetTopic(topic string) {
	trimmed := strings.TrimSpace(topic)

	o.mu.Lock()
	changed := trimmed != o.topic
	o.topic = trimmed
	if changed {
		o.runID = uuid.NewString()
		if o.state != StateIdle {
			logging.Workflow("topic changed, abandoning %s workflow", o.state)
			o.resetLocked()
		}
	}
	o.emitLocked()
	o.mu.Unlock()

	if o.gate != nil {
		o.gate.SetTopic(trimmed)
	}
}

// Topic returns the current topic.
func (o *Orchestrator) Topic() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.topic
}

// resetLocked discards the document and all rewrite bookkeeping and
// returns to idle. Callers must hold o.mu.
func (o *Orchestrator) resetLocked() {
	o.state = StateIdle
	o.plan = ""
	o.doc = nil
	o.message = ""
	o.savedLocation = ""
	o.globalBusy = false
	o.busyUnits = make(map[UnitRef]bool)
	o.pendingInstr = make(map[UnitRef]string)
	o.unitErrors = make(map[UnitRef]string)
	o.revertGen++
}

// Abandon discards the current document and any pending rewrite
// instructions and returns to idle ("start over"). In-flight remote calls
// are not aborted; their late responses are ignored via the run ID.
func (o *Orchestrator) Abandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIdle {
		return
	}
	logging.Workflow("abandoning workflow in state %s", o.state)
	o.runID = uuid.NewString()
	o.resetLocked()
	o.emitLocked()
}

// Reset starts a new product after finalization, discarding the document.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateFinalized {
		return
	}
	o.runID = uuid.NewString()
	o.resetLocked()
	o.emitLocked()
}

// Retry clears an error state immediately instead of waiting for the
// display window to elapse.
func (o *Orchestrator) Retry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateError {
		return
	}
	if err := o.transitionLocked(StateIdle); err != nil {
		return
	}
	o.message = ""
	o.revertGen++
	o.emitLocked()
}

// enterErrorLocked moves to the error state with a message and schedules
// the automatic revert to idle after the display window. Callers must
// hold o.mu and be in a state that may transition to error.
func (o *Orchestrator) enterErrorLocked(msg string) {
	if err := o.transitionLocked(StateError); err != nil {
		logging.WorkflowError("cannot enter error state: %v", err)
		return
	}
	o.message = msg
	o.revertGen++
	gen := o.revertGen
	time.AfterFunc(o.cfg.ErrorWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		// A newer error, retry, or reset supersedes this revert.
		if o.revertGen != gen || o.state != StateError {
			return
		}
		o.state = StateIdle
		o.message = ""
		o.emitLocked()
	})
	o.emitLocked()
}

// setTransientMessageLocked shows a message that clears itself after the
// display window without changing state. Callers must hold o.mu.
func (o *Orchestrator) setTransientMessageLocked(msg string) {
	o.message = msg
	o.revertGen++
	gen := o.revertGen
	time.AfterFunc(o.cfg.ErrorWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.revertGen != gen {
			return
		}
		o.message = ""
		o.emitLocked()
	})
	o.emitLocked()
}
