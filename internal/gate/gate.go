// Package gate implements the research-readiness gate: a debounced
// validator that asks the Sage backend whether supporting research material
// exists for the current topic, without ever blocking typing.
//
// The result is advisory. The orchestrator consults it once, synchronously,
// at the moment the operator requests generation; it is not re-validated
// during a run.
package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"sageops/internal/logging"
	"sageops/internal/sage"
)

// Status is the gate's small state.
type Status int

const (
	StatusIdle Status = iota
	StatusChecking
	StatusFound
	StatusMissing
)

// String returns the display name for each status.
func (s Status) String() string {
	names := []string{"idle", "checking", "found", "missing"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Result is a snapshot of the gate state. Superseded by the next check;
// never persisted.
type Result struct {
	Status     Status
	SourceFile string
	Topic      string // topic the status belongs to
}

// DefaultWindow is the quiet period after the last topic edit before a
// lookup is issued.
const DefaultWindow = 600 * time.Millisecond

// DefaultLookupTimeout bounds a single backend lookup. A timeout falls
// back to idle like any other transport failure.
const DefaultLookupTimeout = 15 * time.Second

// Gate tracks research readiness for a mutable topic string.
type Gate struct {
	client        sage.Client
	debouncer     *Debouncer
	lookupTimeout time.Duration
	notify        func(Result)

	mu     sync.Mutex
	topic  string // current topic; responses for any other topic are stale
	seq    uint64 // lookup generation, last-scheduled-wins
	result Result
}

// New creates a gate. notify is invoked (without the gate lock held) each
// time the visible status changes; it may be nil. Non-positive durations
// fall back to the defaults.
func New(client sage.Client, window, lookupTimeout time.Duration, notify func(Result)) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if notify == nil {
		notify = func(Result) {}
	}
	return &Gate{
		client:        client,
		debouncer:     NewDebouncer(window),
		lookupTimeout: lookupTimeout,
		notify:        notify,
	}
}

// SetTopic records a topic edit. Empty or whitespace-only input resets to
// idle immediately and cancels any pending lookup; otherwise the status
// becomes checking and a single lookup is scheduled after the quiet window.
func (g *Gate) SetTopic(topic string) {
	trimmed := strings.TrimSpace(topic)

	g.mu.Lock()
	g.topic = trimmed
	g.seq++
	if trimmed == "" {
		g.debouncer.Cancel()
		g.result = Result{Status: StatusIdle}
		snapshot := g.result
		g.mu.Unlock()
		g.notify(snapshot)
		return
	}
	seq := g.seq
	g.result = Result{Status: StatusChecking, Topic: trimmed}
	snapshot := g.result
	g.mu.Unlock()
	g.notify(snapshot)

	logging.GateDebug("scheduling lookup for %q (seq=%d)", trimmed, seq)
	g.debouncer.Debounce(func() {
		g.lookup(context.Background(), trimmed, seq)
	})
}

// lookup performs the remote check and applies the result unless it has
// been superseded by a newer topic edit. The caller's context is honored
// on top of the gate's own lookup timeout.
func (g *Gate) lookup(ctx context.Context, topic string, seq uint64) {
	ctx, cancel := context.WithTimeout(ctx, g.lookupTimeout)
	defer cancel()

	check, err := g.client.ResearchCheck(ctx, topic)

	g.mu.Lock()
	// A slow response for an old topic must not overwrite the status for a
	// newer one.
	if g.seq != seq || g.topic != topic {
		g.mu.Unlock()
		logging.GateDebug("discarding stale lookup for %q (seq=%d, current=%d)", topic, seq, g.seq)
		return
	}
	switch {
	case err != nil:
		// Fail open for typing UX. Anything other than found still counts
		// as "not confirmed" to the orchestrator.
		g.result = Result{Status: StatusIdle, Topic: topic}
		logging.Gate("lookup for %q failed, falling back to idle: %v", topic, err)
	case check.HasResearch:
		g.result = Result{Status: StatusFound, SourceFile: check.File, Topic: topic}
		logging.Gate("research found for %q: %s", topic, check.File)
	default:
		g.result = Result{Status: StatusMissing, Topic: topic}
		logging.Gate("no research for %q", topic)
	}
	snapshot := g.result
	g.mu.Unlock()
	g.notify(snapshot)
}

// Snapshot returns the current gate state.
func (g *Gate) Snapshot() Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.result
}

// CheckNow performs a synchronous lookup, bypassing the debounce window,
// and applies the result if the topic is still current. The orchestrator
// uses this to re-query the gate after a research run.
func (g *Gate) CheckNow(ctx context.Context, topic string) Result {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Status: StatusIdle}
	}

	g.mu.Lock()
	g.seq++
	seq := g.seq
	g.topic = topic
	g.mu.Unlock()
	g.debouncer.Cancel()

	g.lookup(ctx, topic, seq)
	return g.Snapshot()
}

// Close cancels any pending lookup timer.
func (g *Gate) Close() {
	g.debouncer.Cancel()
}
