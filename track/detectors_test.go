package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pointerDiv() *Element {
	return &Element{Tag: "div", Class: "card", Cursor: "pointer"}
}

func TestRageClickTriggersAndResets(t *testing.T) {
	d := NewClickDetector()
	base := time.Now()

	var issues []Issue
	for i := 0; i < 3; i++ {
		issues = d.Observe(Click{
			Time:   base.Add(time.Duration(i) * 100 * time.Millisecond),
			X:      200 + float64(i),
			Y:      300 + float64(i),
			Target: &Element{Tag: "div"},
		})
	}

	require.Len(t, issues, 1)
	assert.Equal(t, "rage_click", issues[0].Action)
	assert.Equal(t, 3, issues[0].Data["clicks"])
	assert.Equal(t, "div", issues[0].Data["element"])

	// The burst buffer is cleared on trigger; an isolated follow-up click
	// must not retrigger.
	assert.Equal(t, 0, d.BufferedClicks())
	issues = d.Observe(Click{Time: base.Add(400 * time.Millisecond), X: 201, Y: 301, Target: &Element{Tag: "div"}})
	assert.Empty(t, issues)
}

func TestRageClickRequiresSpatialCluster(t *testing.T) {
	d := NewClickDetector()
	base := time.Now()

	positions := [][2]float64{{0, 0}, {200, 0}, {400, 0}}
	var issues []Issue
	for i, pos := range positions {
		issues = d.Observe(Click{
			Time: base.Add(time.Duration(i) * 100 * time.Millisecond),
			X:    pos[0],
			Y:    pos[1],
		})
	}
	assert.Empty(t, issues)
	assert.Equal(t, 3, d.BufferedClicks())
}

func TestRageClickWindowEviction(t *testing.T) {
	d := NewClickDetector()
	base := time.Now()

	d.Observe(Click{Time: base, X: 100, Y: 100})
	d.Observe(Click{Time: base.Add(100 * time.Millisecond), X: 101, Y: 101})
	// Third click arrives after the first two fell out of the 1500 ms
	// window, so no trigger.
	issues := d.Observe(Click{Time: base.Add(2 * time.Second), X: 102, Y: 102})

	assert.Empty(t, issues)
	assert.Equal(t, 1, d.BufferedClicks())
}

func TestDeadClickDetection(t *testing.T) {
	tests := []struct {
		name   string
		target *Element
		dead   bool
	}{
		{"pointer styled div", pointerDiv(), true},
		{"plain div", &Element{Tag: "div"}, false},
		{"real button", &Element{Tag: "button", Cursor: "pointer"}, false},
		{"span inside a link", &Element{Tag: "span", Cursor: "pointer", Parent: &Element{Tag: "a"}}, false},
		{"feature tagged div", &Element{Tag: "div", Cursor: "pointer", Feature: "export-csv"}, false},
		{"nil target", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue := detectDeadClick(Click{Time: time.Now(), X: 10, Y: 20, Target: tt.target})
			if tt.dead {
				require.NotNil(t, issue)
				assert.Equal(t, "dead_click", issue.Action)
				assert.Equal(t, tt.target.Tag, issue.Data["element"])
			} else {
				assert.Nil(t, issue)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Inert, Classify(nil))
	assert.Equal(t, Inert, Classify(&Element{Tag: "p"}))
	assert.Equal(t, DecorativeClickable, Classify(pointerDiv()))
	assert.Equal(t, Interactive, Classify(&Element{Tag: "textarea"}))
	assert.Equal(t, Interactive, Classify(&Element{Tag: "svg", Parent: &Element{Tag: "button"}}))
	assert.Equal(t, Interactive, Classify(&Element{Tag: "div", Feature: "save"}))
}

func TestScrollDepthPercent(t *testing.T) {
	// Page shorter than the viewport cannot scroll.
	assert.Equal(t, 0, ScrollDepthPercent(0, 500, 800))
	assert.Equal(t, 0, ScrollDepthPercent(0, 800, 800))

	assert.Equal(t, 50, ScrollDepthPercent(600, 2000, 800))
	assert.Equal(t, 100, ScrollDepthPercent(1200, 2000, 800))
	// Overscroll clamps.
	assert.Equal(t, 100, ScrollDepthPercent(1500, 2000, 800))
	assert.Equal(t, 0, ScrollDepthPercent(-10, 2000, 800))
}

func TestScrollCheckpointsFireOnceInOrder(t *testing.T) {
	tracker := NewScrollTracker()
	now := time.Now()

	depths := []int{10, 26, 51, 77, 91, 100}
	var fired []int
	for i, depth := range depths {
		// Space observations past the debounce interval.
		fired = append(fired, tracker.Observe(now.Add(time.Duration(i)*300*time.Millisecond), depth)...)
	}
	assert.Equal(t, []int{25, 50, 75, 90, 100}, fired)

	// Depth regression and re-crossing must not refire.
	assert.Empty(t, tracker.Observe(now.Add(2*time.Second), 10))
	assert.Empty(t, tracker.Observe(now.Add(3*time.Second), 100))
}

func TestScrollJumpFiresAllCrossedCheckpoints(t *testing.T) {
	tracker := NewScrollTracker()
	fired := tracker.Observe(time.Now(), 100)
	assert.Equal(t, []int{25, 50, 75, 90, 100}, fired)
}

func TestScrollDebounce(t *testing.T) {
	tracker := NewScrollTracker()
	now := time.Now()

	assert.Equal(t, []int{25}, tracker.Observe(now, 30))
	// Inside the 200 ms debounce window nothing is computed...
	assert.Empty(t, tracker.Observe(now.Add(50*time.Millisecond), 60))
	// ...but a later observation catches up since checkpoints are
	// monotonic per page view.
	assert.Equal(t, []int{50}, tracker.Observe(now.Add(300*time.Millisecond), 60))
}

func TestScrollFinalObservationDeferredNotDropped(t *testing.T) {
	tracker := NewScrollTracker()
	now := time.Now()

	assert.Equal(t, []int{25}, tracker.Observe(now, 30))

	// A fling that stops inside the debounce window defers the final
	// position instead of discarding it.
	assert.Empty(t, tracker.Observe(now.Add(100*time.Millisecond), 100))
	assert.True(t, tracker.HasDeferred())

	assert.Equal(t, []int{50, 75, 90, 100}, tracker.Flush())
	assert.False(t, tracker.HasDeferred())
	assert.Empty(t, tracker.Flush())
}

func TestScrollDeferredKeepsDeepestPosition(t *testing.T) {
	tracker := NewScrollTracker()
	now := time.Now()

	assert.Empty(t, tracker.Observe(now, 10))
	assert.Empty(t, tracker.Observe(now.Add(50*time.Millisecond), 80))
	assert.Empty(t, tracker.Observe(now.Add(100*time.Millisecond), 60))

	// The deepest deferred depth wins when the window closes.
	assert.Equal(t, []int{25, 50, 75}, tracker.Observe(now.Add(300*time.Millisecond), 30))
}

func TestScrollResetOnNavigation(t *testing.T) {
	tracker := NewScrollTracker()
	now := time.Now()

	assert.Equal(t, []int{25, 50}, tracker.Observe(now, 55))
	tracker.Reset()
	assert.Equal(t, []int{25, 50}, tracker.Observe(now.Add(time.Second), 55))
}

func TestDeviceClass(t *testing.T) {
	assert.Equal(t, "", DeviceClass(0))
	assert.Equal(t, "mobile", DeviceClass(375))
	assert.Equal(t, "tablet", DeviceClass(800))
	assert.Equal(t, "desktop", DeviceClass(1440))
}
