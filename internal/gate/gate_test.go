package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sageops/internal/sage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient implements sage.Client for gate tests. Only ResearchCheck is
// exercised here.
type fakeClient struct {
	mu         sync.Mutex
	calls      int32
	checkFn    func(ctx context.Context, topic string) (sage.ResearchCheckResult, error)
	lastTopics []string
}

func (f *fakeClient) ResearchCheck(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastTopics = append(f.lastTopics, topic)
	f.mu.Unlock()
	if f.checkFn != nil {
		return f.checkFn(ctx, topic)
	}
	return sage.ResearchCheckResult{}, nil
}

func (f *fakeClient) ResearchRun(ctx context.Context, topic string) error { return nil }
func (f *fakeClient) Plan(ctx context.Context, topic, market, price string) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (f *fakeClient) Execute(ctx context.Context, req sage.ExecuteRequest) (*sage.ExecuteResult, error) {
	return nil, fmt.Errorf("not implemented")
}
func (f *fakeClient) Rewrite(ctx context.Context, content, instruction, lang string) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (f *fakeClient) Finalize(ctx context.Context, req sage.FinalizeRequest) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (f *fakeClient) Load(ctx context.Context, location string) (*sage.SavedProduct, error) {
	return nil, fmt.Errorf("not implemented")
}

// collector gathers notify callbacks for assertions.
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) notify(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) last() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return Result{}
	}
	return c.results[len(c.results)-1]
}

func waitForStatus(t *testing.T, g *Gate, want Status) Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r := g.Snapshot(); r.Status == want {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("gate never reached status %v (at %v)", want, g.Snapshot().Status)
	return Result{}
}

func TestSetTopic_EmptyResetsImmediately(t *testing.T) {
	client := &fakeClient{}
	g := New(client, 20*time.Millisecond, 0, nil)
	defer g.Close()

	g.SetTopic("   ")
	assert.Equal(t, StatusIdle, g.Snapshot().Status)

	// No lookup may fire for whitespace input
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&client.calls))
}

func TestSetTopic_DebouncesToSingleLookup(t *testing.T) {
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			return sage.ResearchCheckResult{HasResearch: true, File: "research_x.md"}, nil
		},
	}
	g := New(client, 50*time.Millisecond, 0, nil)
	defer g.Close()

	// Rapid keystrokes inside the quiet window
	for _, topic := range []string{"M", "Mo", "Mor", "Morning Routine"} {
		g.SetTopic(topic)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, StatusChecking, g.Snapshot().Status)

	result := waitForStatus(t, g, StatusFound)
	assert.Equal(t, "research_x.md", result.SourceFile)
	assert.Equal(t, "Morning Routine", result.Topic)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls), "only the last edit may trigger a lookup")
}

func TestStaleResponseDoesNotLeakAcrossTopics(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			if topic == "Old Topic" {
				<-release // slow response for the superseded topic
				return sage.ResearchCheckResult{HasResearch: true, File: "research_old.md"}, nil
			}
			return sage.ResearchCheckResult{HasResearch: false}, nil
		},
	}
	c := &collector{}
	g := New(client, 10*time.Millisecond, 0, c.notify)
	defer g.Close()

	g.SetTopic("Old Topic")
	// Let the slow lookup start before switching topics
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&client.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	g.SetTopic("New Topic")
	waitForStatus(t, g, StatusMissing)

	close(release)
	time.Sleep(50 * time.Millisecond) // give the stale response a chance to misbehave

	final := g.Snapshot()
	assert.Equal(t, StatusMissing, final.Status, "stale found-result for Old Topic must be discarded")
	assert.Equal(t, "New Topic", final.Topic)
	assert.Equal(t, StatusMissing, c.last().Status)
}

func TestTransportFailureFallsBackToIdle(t *testing.T) {
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			return sage.ResearchCheckResult{}, fmt.Errorf("connection refused")
		},
	}
	g := New(client, 10*time.Millisecond, 0, nil)
	defer g.Close()

	g.SetTopic("Morning Routine")
	result := waitForStatus(t, g, StatusIdle)
	assert.Equal(t, "Morning Routine", result.Topic)
}

func TestCheckNow_BypassesDebounce(t *testing.T) {
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			return sage.ResearchCheckResult{HasResearch: true, File: "research_now.md"}, nil
		},
	}
	g := New(client, time.Hour, 0, nil) // debounce window never elapses in this test
	defer g.Close()

	result := g.CheckNow(context.Background(), "Morning Routine")
	require.Equal(t, StatusFound, result.Status)
	assert.Equal(t, "research_now.md", result.SourceFile)
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))
}

func TestConfiguredLookupTimeoutBoundsTheCall(t *testing.T) {
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			<-ctx.Done() // backend never answers; only the deadline ends the call
			return sage.ResearchCheckResult{}, ctx.Err()
		},
	}
	g := New(client, time.Hour, 15*time.Millisecond, nil)
	defer g.Close()

	start := time.Now()
	result := g.CheckNow(context.Background(), "Morning Routine")

	assert.Equal(t, StatusIdle, result.Status, "timed-out lookup falls back to idle")
	assert.Less(t, time.Since(start), 2*time.Second, "configured timeout must bound the lookup")
	assert.Equal(t, int32(1), atomic.LoadInt32(&client.calls))
}

func TestCheckNow_HonorsCallerContext(t *testing.T) {
	client := &fakeClient{
		checkFn: func(ctx context.Context, topic string) (sage.ResearchCheckResult, error) {
			<-ctx.Done()
			return sage.ResearchCheckResult{}, ctx.Err()
		},
	}
	g := New(client, time.Hour, 0, nil)
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	result := g.CheckNow(ctx, "Morning Routine")

	assert.Equal(t, StatusIdle, result.Status)
	assert.Less(t, time.Since(start), 2*time.Second, "cancelled caller context must end the lookup")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "checking", StatusChecking.String())
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "missing", StatusMissing.String())
}
