// track/detectors.go
package track

import (
	"math"
	"time"
)

// Capability classifies what a clicked element can actually do, independent
// of any UI framework.
type Capability int

const (
	// Inert elements neither look nor act clickable.
	Inert Capability = iota
	// DecorativeClickable elements advertise a pointer affordance but have
	// no interactive behavior; clicking them is a dead click.
	DecorativeClickable
	// Interactive elements (or descendants of one) perform an action.
	Interactive
)

// Element describes a rendered node as reported by the host integration.
type Element struct {
	Tag     string
	ID      string
	Class   string
	Text    string
	Cursor  string // resolved cursor style at the click point
	Feature string // explicit feature tag, non-empty marks it interactive
	Parent  *Element
}

var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"input":    true,
	"select":   true,
	"textarea": true,
	"option":   true,
	"summary":  true,
}

var pointerCursors = map[string]bool{
	"pointer":  true,
	"grab":     true,
	"grabbing": true,
}

// Classify resolves an element's capability. An element is interactive when
// it or any ancestor is a known interactive tag or carries a feature tag;
// otherwise a pointer affordance makes it decorative-but-clickable-looking.
func Classify(el *Element) Capability {
	if el == nil {
		return Inert
	}
	for node := el; node != nil; node = node.Parent {
		if interactiveTags[node.Tag] || node.Feature != "" {
			return Interactive
		}
	}
	if pointerCursors[el.Cursor] {
		return DecorativeClickable
	}
	return Inert
}

// Click is one raw click signal.
type Click struct {
	Time   time.Time
	X, Y   float64
	Target *Element
}

// Issue is a synthetic ux_issue emission from a detector.
type Issue struct {
	Action string
	Data   map[string]any
}

const (
	rageWindow    = 1500 * time.Millisecond
	rageRadius    = 50.0
	rageMinClicks = 3
)

// ClickDetector runs the rage-click and dead-click heuristics over a
// rolling buffer of recent clicks.
type ClickDetector struct {
	buffer []Click
}

func NewClickDetector() *ClickDetector {
	return &ClickDetector{}
}

// Observe processes one click and returns any issues it triggered. The rage
// buffer is cleared on a trigger so one burst emits exactly one issue.
func (d *ClickDetector) Observe(click Click) []Issue {
	var issues []Issue

	if issue := d.observeRage(click); issue != nil {
		issues = append(issues, *issue)
	}
	if issue := detectDeadClick(click); issue != nil {
		issues = append(issues, *issue)
	}
	return issues
}

func (d *ClickDetector) observeRage(click Click) *Issue {
	d.buffer = append(d.buffer, click)

	// Evict entries that fell out of the window.
	cutoff := click.Time.Add(-rageWindow)
	kept := d.buffer[:0]
	for _, c := range d.buffer {
		if !c.Time.Before(cutoff) {
			kept = append(kept, c)
		}
	}
	d.buffer = kept

	if len(d.buffer) < rageMinClicks {
		return nil
	}

	var cx, cy float64
	for _, c := range d.buffer {
		cx += c.X
		cy += c.Y
	}
	cx /= float64(len(d.buffer))
	cy /= float64(len(d.buffer))

	for _, c := range d.buffer {
		if math.Abs(c.X-cx) > rageRadius || math.Abs(c.Y-cy) > rageRadius {
			return nil
		}
	}

	count := len(d.buffer)
	d.buffer = nil

	data := map[string]any{
		"x":      math.Round(cx),
		"y":      math.Round(cy),
		"clicks": count,
	}
	describeElement(click.Target, data)
	return &Issue{Action: "rage_click", Data: data}
}

// BufferedClicks reports the current rage-buffer size.
func (d *ClickDetector) BufferedClicks() int {
	return len(d.buffer)
}

func detectDeadClick(click Click) *Issue {
	if Classify(click.Target) != DecorativeClickable {
		return nil
	}
	data := map[string]any{
		"x": click.X,
		"y": click.Y,
	}
	describeElement(click.Target, data)
	return &Issue{Action: "dead_click", Data: data}
}

func describeElement(el *Element, data map[string]any) {
	if el == nil {
		return
	}
	data["element"] = el.Tag
	if el.Text != "" {
		data["text"] = truncate(el.Text, 80)
	}
	if el.Class != "" {
		data["class"] = el.Class
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var scrollCheckpoints = []int{25, 50, 75, 90, 100}

const scrollDebounce = 200 * time.Millisecond

// ScrollTracker fires each depth checkpoint at most once per page view.
// Observations inside the debounce interval are deferred, not dropped: the
// deepest one is evaluated by the next observation or by Flush, so a fling
// that stops scrolling never loses its crossed checkpoints.
type ScrollTracker struct {
	fired    map[int]bool
	lastObs  time.Time
	hasObs   bool
	pending  int
	deferred bool
}

func NewScrollTracker() *ScrollTracker {
	return &ScrollTracker{fired: map[int]bool{}}
}

// ScrollDepthPercent converts raw scroll geometry to a 0-100 depth, clamped
// to 0 when the page does not scroll.
func ScrollDepthPercent(scrollTop, scrollHeight, viewportHeight float64) int {
	denom := scrollHeight - viewportHeight
	if denom <= 0 {
		return 0
	}
	depth := math.Round(scrollTop / denom * 100)
	if depth < 0 {
		return 0
	}
	if depth > 100 {
		return 100
	}
	return int(depth)
}

// Observe returns the checkpoints newly crossed at this depth, in ascending
// order. An observation inside the debounce window is deferred.
func (t *ScrollTracker) Observe(now time.Time, depth int) []int {
	if t.hasObs && now.Sub(t.lastObs) < scrollDebounce {
		if !t.deferred || depth > t.pending {
			t.pending = depth
		}
		t.deferred = true
		return nil
	}
	t.lastObs = now
	t.hasObs = true
	if t.deferred && t.pending > depth {
		depth = t.pending
	}
	t.deferred = false
	return t.cross(depth)
}

// Flush evaluates the deferred observation, if any. Callers invoke it when
// the debounce window expires and on page teardown so the final scroll
// position is always evaluated.
func (t *ScrollTracker) Flush() []int {
	if !t.deferred {
		return nil
	}
	t.deferred = false
	return t.cross(t.pending)
}

// HasDeferred reports whether an observation is waiting on Flush.
func (t *ScrollTracker) HasDeferred() bool {
	return t.deferred
}

func (t *ScrollTracker) cross(depth int) []int {
	var crossed []int
	for _, checkpoint := range scrollCheckpoints {
		if depth >= checkpoint && !t.fired[checkpoint] {
			t.fired[checkpoint] = true
			crossed = append(crossed, checkpoint)
		}
	}
	return crossed
}

// Reset clears the fired set on navigation to a new logical page.
func (t *ScrollTracker) Reset() {
	t.fired = map[int]bool{}
	t.hasObs = false
	t.deferred = false
}
