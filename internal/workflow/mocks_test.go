package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sageops/internal/gate"
	"sageops/internal/sage"
)

// scriptedClient implements sage.Client with per-call hooks and counters.
// Unset hooks return benign defaults.
type scriptedClient struct {
	mu sync.Mutex

	checkFn    func(topic string) (sage.ResearchCheckResult, error)
	researchFn func(topic string) error
	planFn     func(topic, market, price string) (string, error)
	executeFn  func(req sage.ExecuteRequest) (*sage.ExecuteResult, error)
	rewriteFn  func(content, instruction, lang string) (string, error)
	finalizeFn func(req sage.FinalizeRequest) (string, error)
	loadFn     func(location string) (*sage.SavedProduct, error)

	planCalls     int32
	executeCalls  int32
	rewriteCalls  int32
	finalizeCalls int32
	researchCalls int32

	saved map[string]sage.SavedProduct
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{saved: make(map[string]sage.SavedProduct)}
}

func (s *scriptedClient) ResearchCheck(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
	s.mu.Lock()
	fn := s.checkFn
	s.mu.Unlock()
	if fn != nil {
		return fn(topic)
	}
	return sage.ResearchCheckResult{HasResearch: true, File: "research_default.md"}, nil
}

func (s *scriptedClient) ResearchRun(ctx context.Context, topic string) error {
	atomic.AddInt32(&s.researchCalls, 1)
	s.mu.Lock()
	fn := s.researchFn
	s.mu.Unlock()
	if fn != nil {
		return fn(topic)
	}
	return nil
}

func (s *scriptedClient) Plan(ctx context.Context, topic, market, price string) (string, error) {
	atomic.AddInt32(&s.planCalls, 1)
	s.mu.Lock()
	fn := s.planFn
	s.mu.Unlock()
	if fn != nil {
		return fn(topic, market, price)
	}
	return "plan for " + topic, nil
}

func (s *scriptedClient) Execute(ctx context.Context, req sage.ExecuteRequest) (*sage.ExecuteResult, error) {
	atomic.AddInt32(&s.executeCalls, 1)
	s.mu.Lock()
	fn := s.executeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &sage.ExecuteResult{
		Sections: []sage.Section{
			{Title: "Why it matters", Content: "intro content"},
			{Title: "The method", Content: "method content"},
			{Title: "Keeping it going", Content: "habit content"},
		},
		SalesPage: "sales copy",
		QAStatus:  sage.QAPass,
	}, nil
}

func (s *scriptedClient) Rewrite(ctx context.Context, content, instruction, lang string) (string, error) {
	atomic.AddInt32(&s.rewriteCalls, 1)
	s.mu.Lock()
	fn := s.rewriteFn
	s.mu.Unlock()
	if fn != nil {
		return fn(content, instruction, lang)
	}
	return "rewritten: " + content, nil
}

func (s *scriptedClient) Finalize(ctx context.Context, req sage.FinalizeRequest) (string, error) {
	atomic.AddInt32(&s.finalizeCalls, 1)
	s.mu.Lock()
	fn := s.finalizeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	location := "vault/course_" + req.Topic + ".md"
	s.mu.Lock()
	s.saved[location] = sage.SavedProduct{Sections: req.Sections, SalesPage: req.SalesPage}
	s.mu.Unlock()
	return location, nil
}

func (s *scriptedClient) Load(ctx context.Context, location string) (*sage.SavedProduct, error) {
	s.mu.Lock()
	fn := s.loadFn
	product, ok := s.saved[location]
	s.mu.Unlock()
	if fn != nil {
		return fn(location)
	}
	if !ok {
		return nil, fmt.Errorf("not found: %s", location)
	}
	return &product, nil
}

// testConfig keeps display windows short so auto-revert is observable.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ErrorWindow = 60 * time.Millisecond
	return cfg
}

// newTestOrchestrator wires a scripted client through a real gate with a
// tiny debounce window.
func newTestOrchestrator(t *testing.T, client *scriptedClient) (*Orchestrator, *gate.Gate) {
	t.Helper()
	g := gate.New(client, 5*time.Millisecond, 0, nil)
	t.Cleanup(g.Close)
	o := New(client, g, testConfig())
	t.Cleanup(o.Close)
	return o, g
}

// primeTopic sets the topic and resolves the gate synchronously so tests
// do not depend on debounce timing.
func primeTopic(t *testing.T, o *Orchestrator, g *gate.Gate, topic string) {
	t.Helper()
	o.SetTopic(topic)
	g.CheckNow(context.Background(), topic)
}

// intoReview drives the orchestrator to the review state with the
// scripted client's default three-section document.
func intoReview(t *testing.T, o *Orchestrator, g *gate.Gate, topic string) {
	t.Helper()
	primeTopic(t, o, g, topic)
	if err := o.RequestGeneration(context.Background(), false); err != nil {
		t.Fatalf("RequestGeneration: %v", err)
	}
	if o.State() != StateReview {
		t.Fatalf("expected review state, got %s", o.State())
	}
}

// waitForState polls until the orchestrator reaches the wanted state.
func waitForState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("orchestrator never reached %s (at %s)", want, o.State())
}
