package track

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

// fakeSender scripts transport outcomes and hands every payload to the test.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	payloads chan models.IngestRequest
}

func newFakeSender() *fakeSender {
	return &fakeSender{payloads: make(chan models.IngestRequest, 16)}
}

func (f *fakeSender) Send(ctx context.Context, payload models.IngestRequest) error {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	f.payloads <- payload
	if fail {
		return errors.New("transport failure: connection refused")
	}
	return nil
}

func (f *fakeSender) receive(t *testing.T) models.IngestRequest {
	t.Helper()
	select {
	case payload := <-f.payloads:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a flush")
		return models.IngestRequest{}
	}
}

func testAgent(t *testing.T, cfg Config, sender Sender) *Agent {
	t.Helper()
	cfg.StateDir = t.TempDir()
	cfg.SessionDir = t.TempDir()
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Hour // keep the timer out of the way
	}
	agent := NewWithSender(cfg, Meta{UserAgent: "test-agent"}, sender)
	t.Cleanup(agent.Close)
	return agent
}

func TestBatchThresholdTriggersFlush(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 10}, sender)

	for i := 0; i < 9; i++ {
		agent.Track(models.CategoryInteraction, "click", nil)
	}
	select {
	case <-sender.payloads:
		t.Fatal("flushed before reaching the batch threshold")
	case <-time.After(50 * time.Millisecond):
	}

	// The 10th capture flushes without waiting for the timer.
	agent.Track(models.CategoryInteraction, "click", nil)
	payload := sender.receive(t)
	assert.Len(t, payload.Batch, 10)
	require.NotNil(t, payload.SessionMeta)
	assert.Equal(t, agent.Session().ID, payload.SessionMeta.SessionID)
}

func TestRequeueOnFailureKeepsOrder(t *testing.T) {
	sender := newFakeSender()
	sender.failures = 1
	agent := testAgent(t, Config{
		BatchSize:    100,
		RetryBackoff: 250 * time.Millisecond,
	}, sender)

	actions := []string{"a", "b", "c", "d", "e"}
	for _, action := range actions {
		agent.Track(models.CategoryInteraction, action, nil)
	}
	agent.Flush()

	failed := sender.receive(t)
	require.Len(t, failed.Batch, 5)

	// Capture more events while the failed batch sits requeued.
	agent.Track(models.CategoryInteraction, "f", nil)
	agent.Track(models.CategoryInteraction, "g", nil)

	// The backoff timer retries with the failed batch first, newer
	// events after.
	retried := sender.receive(t)
	require.Len(t, retried.Batch, 7)
	for i, action := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		assert.Equal(t, action, retried.Batch[i].Action)
	}
}

func TestFlushSkippedInsideBackoffWindow(t *testing.T) {
	sender := newFakeSender()
	sender.failures = 1
	agent := testAgent(t, Config{
		BatchSize:    100,
		RetryBackoff: time.Hour,
	}, sender)

	agent.Track(models.CategoryInteraction, "a", nil)
	agent.Flush()
	sender.receive(t) // the failing attempt

	// Inside the backoff window a manual flush must not retransmit.
	agent.Flush()
	select {
	case <-sender.payloads:
		t.Fatal("flushed during the backoff window")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueueEvictsOldestFirst(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100, MaxQueue: 5}, sender)

	for _, action := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		agent.Track(models.CategoryInteraction, action, nil)
	}
	agent.Flush()

	payload := sender.receive(t)
	require.Len(t, payload.Batch, 5)
	assert.Equal(t, "c", payload.Batch[0].Action)
	assert.Equal(t, "g", payload.Batch[4].Action)
}

func TestCloseFlushesSynchronously(t *testing.T) {
	sender := newFakeSender()
	cfg := Config{BatchSize: 100, StateDir: t.TempDir(), SessionDir: t.TempDir(), FlushInterval: time.Hour}
	agent := NewWithSender(cfg, Meta{}, sender)

	agent.Track(models.CategoryInteraction, "a", nil)
	agent.Track(models.CategoryInteraction, "b", nil)
	agent.Close()

	payload := sender.receive(t)
	assert.Len(t, payload.Batch, 2)

	// Capture after teardown is a no-op.
	agent.Track(models.CategoryInteraction, "c", nil)
	select {
	case <-sender.payloads:
		t.Fatal("event captured after Close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTrackStampsContext(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100}, sender)

	agent.SetViewport(375, 812)
	agent.Navigate("/pricing?plan=pro", "Pricing")
	agent.Track(models.CategoryFeature, "feature_click", map[string]any{"feature": "compare"})
	agent.Flush()

	payload := sender.receive(t)
	require.Len(t, payload.Batch, 2) // page_view + feature_click

	pageView := payload.Batch[0]
	assert.Equal(t, models.CategoryNavigation, pageView.Category)
	assert.Equal(t, "page_view", pageView.Action)
	assert.Equal(t, "/pricing?plan=pro", pageView.Page)
	assert.Equal(t, "mobile", pageView.DeviceClass)
	assert.Equal(t, agent.User().ID, pageView.UserID)
	assert.Equal(t, agent.Session().ID, pageView.SessionID)
	assert.NotZero(t, pageView.Timestamp)

	featureClick := payload.Batch[1]
	assert.Equal(t, "compare", featureClick.Data["feature"])
	assert.Equal(t, 375, featureClick.ViewportWidth)
}

func TestDetectorIssuesFlowThroughCapture(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100}, sender)

	base := time.Now()
	for i := 0; i < 3; i++ {
		agent.OnClick(Click{
			Time:   base.Add(time.Duration(i) * 100 * time.Millisecond),
			X:      50,
			Y:      60,
			Target: &Element{Tag: "div", Cursor: "pointer"},
		})
	}
	agent.OnScroll(600, 2000, 800) // depth 50
	agent.Flush()

	payload := sender.receive(t)

	var actions []string
	for _, event := range payload.Batch {
		actions = append(actions, event.Category+"/"+event.Action)
	}
	// Every pointer-styled inert click is dead; the third click also
	// completes a rage burst.
	assert.Contains(t, actions, "ux_issue/dead_click")
	assert.Contains(t, actions, "ux_issue/rage_click")
	assert.Contains(t, actions, "engagement/scroll_depth")
}

func scrollDepths(payload models.IngestRequest) []int {
	var depths []int
	for _, event := range payload.Batch {
		if event.Action == "scroll_depth" {
			depths = append(depths, event.Data["depth"].(int))
		}
	}
	return depths
}

func TestDeferredScrollSettlesAfterDebounce(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100}, sender)

	agent.OnScroll(300, 2000, 800) // depth 25
	agent.OnScroll(600, 2000, 800) // inside the debounce window, deferred

	// Once the window expires the deferred position settles on its own.
	time.Sleep(300 * time.Millisecond)
	agent.Flush()

	payload := sender.receive(t)
	assert.Equal(t, []int{25, 50}, scrollDepths(payload))
}

func TestDeferredScrollSettlesOnClose(t *testing.T) {
	sender := newFakeSender()
	cfg := Config{BatchSize: 100, StateDir: t.TempDir(), SessionDir: t.TempDir(), FlushInterval: time.Hour}
	agent := NewWithSender(cfg, Meta{}, sender)

	agent.OnScroll(300, 2000, 800)  // depth 25
	agent.OnScroll(1200, 2000, 800) // fling to the bottom, deferred
	agent.Close()

	payload := sender.receive(t)
	assert.Equal(t, []int{25, 50, 75, 90, 100}, scrollDepths(payload))
}

func TestDeferredScrollSettlesOnNavigate(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100}, sender)

	agent.Navigate("/docs", "")
	agent.OnScroll(300, 2000, 800)
	agent.OnScroll(1200, 2000, 800) // deferred
	agent.Navigate("/pricing", "")
	agent.Flush()

	payload := sender.receive(t)
	// The deferred checkpoints are stamped with the page being left.
	pages := map[int]string{}
	for _, event := range payload.Batch {
		if event.Action == "scroll_depth" {
			pages[event.Data["depth"].(int)] = event.Page
		}
	}
	assert.Equal(t, "/docs", pages[25])
	assert.Equal(t, "/docs", pages[100])
}

func TestTrackNeverPanicsToHost(t *testing.T) {
	sender := newFakeSender()
	agent := testAgent(t, Config{BatchSize: 100}, sender)

	assert.NotPanics(t, func() {
		agent.OnClick(Click{Time: time.Now()})
		agent.Track("", "", nil)
	})
}
