// track/agent.go
package track

import (
	"context"
	"log"
	"sync"
	"time"

	"pulsetrack/api/models"
)

// Agent is the single point of event creation: detectors and host handlers
// all emit through Track. It owns the local queue, the flush scheduler and
// the retry state. All queue mutation happens inside one mutex so a timer
// flush, a threshold flush and a failure requeue can never interleave a
// clear with a requeue incorrectly.
type Agent struct {
	mu sync.Mutex

	cfg    Config
	sender Sender
	ids    *identityStore

	user    User
	session Session
	meta    models.SessionMeta

	page           string
	viewportWidth  int
	viewportHeight int

	queue       []models.Event
	timer       *time.Timer
	scrollTimer *time.Timer
	closed      bool

	backoff      time.Duration
	backoffUntil time.Time

	clicks *ClickDetector
	scroll *ScrollTracker

	wg sync.WaitGroup
}

// Meta describes the client environment, reported once per batch.
type Meta struct {
	UserAgent        string
	ScreenResolution string
	Language         string
	Referrer         string
}

// New initializes the agent for one page load: identity is loaded or
// minted, the session counted, and the pipeline armed.
func New(cfg Config, meta Meta) *Agent {
	cfg = cfg.withDefaults()
	return NewWithSender(cfg, meta, NewHTTPSender(cfg.Endpoint, cfg.SendTimeout))
}

// NewWithSender is New with an explicit transport, for callers that need a
// custom delivery path.
func NewWithSender(cfg Config, meta Meta, sender Sender) *Agent {
	cfg = cfg.withDefaults()

	ids := newIdentityStore(cfg)
	user := ids.getOrCreateUser()
	session := ids.getOrCreateSession()

	a := &Agent{
		cfg:     cfg,
		sender:  sender,
		ids:     ids,
		user:    user,
		session: session,
		clicks:  NewClickDetector(),
		scroll:  NewScrollTracker(),
	}
	a.meta = models.SessionMeta{
		SessionID:        session.ID,
		UserID:           user.ID,
		UserAgent:        meta.UserAgent,
		ScreenResolution: meta.ScreenResolution,
		Language:         meta.Language,
		Referrer:         meta.Referrer,
	}
	return a
}

// Track captures one event. It never blocks, never performs I/O and never
// lets a failure reach the host.
func (a *Agent) Track(category, action string, data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("track: recovered from panic in Track: %v", r)
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.captureLocked(category, action, data)

	if len(a.queue) >= a.cfg.BatchSize {
		a.flushLocked()
	} else {
		a.scheduleFlushLocked(a.cfg.FlushInterval)
	}
}

// captureLocked stamps one event with the current identity and context and
// enqueues it. Callers hold a.mu.
func (a *Agent) captureLocked(category, action string, data map[string]any) {
	event := models.Event{
		Timestamp:      time.Now().UnixMilli(),
		SessionID:      a.session.ID,
		UserID:         a.user.ID,
		Page:           a.page,
		Category:       category,
		Action:         action,
		Data:           data,
		ViewportWidth:  a.viewportWidth,
		ViewportHeight: a.viewportHeight,
		DeviceClass:    DeviceClass(a.viewportWidth),
	}

	// Bounded queue: evict oldest first rather than grow without limit
	// against a dead endpoint.
	if len(a.queue) >= a.cfg.MaxQueue {
		a.queue = a.queue[1:]
	}
	a.queue = append(a.queue, event)
	a.user.TotalEvents++
	a.session.LastActivity = event.Timestamp
}

// Flush forces a flush attempt of whatever is queued.
func (a *Agent) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushLocked()
}

// flushLocked snapshots and clears the queue, then hands the snapshot to an
// asynchronous send. Inside the retry backoff window it only re-arms the
// timer. Callers hold a.mu.
func (a *Agent) flushLocked() {
	if len(a.queue) == 0 {
		return
	}

	now := time.Now()
	if now.Before(a.backoffUntil) {
		a.scheduleFlushLocked(a.backoffUntil.Sub(now))
		return
	}

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	snapshot := a.queue
	a.queue = nil

	a.wg.Add(1)
	go a.send(snapshot)
}

func (a *Agent) send(snapshot []models.Event) {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SendTimeout)
	defer cancel()

	meta := a.meta
	err := a.sender.Send(ctx, models.IngestRequest{Batch: snapshot, SessionMeta: &meta})

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		log.Printf("track: flush of %d events failed: %v", len(snapshot), err)
		// Failed batch goes back in front of anything captured since.
		a.queue = append(snapshot, a.queue...)
		if overflow := len(a.queue) - a.cfg.MaxQueue; overflow > 0 {
			a.queue = a.queue[overflow:]
		}
		if a.backoff == 0 {
			a.backoff = a.cfg.RetryBackoff
		} else {
			a.backoff *= 2
			if a.backoff > a.cfg.RetryBackoffMax {
				a.backoff = a.cfg.RetryBackoffMax
			}
		}
		a.backoffUntil = time.Now().Add(a.backoff)
		if !a.closed {
			// The retry deadline supersedes any pending interval timer.
			if a.timer != nil {
				a.timer.Stop()
				a.timer = nil
			}
			a.scheduleFlushLocked(a.backoff)
		}
		return
	}

	a.backoff = 0
	a.backoffUntil = time.Time{}
	a.ids.saveUser(a.user)
}

// scheduleFlushLocked arms the flush timer unless one is already pending.
// Callers hold a.mu.
func (a *Agent) scheduleFlushLocked(d time.Duration) {
	if a.timer != nil || a.closed {
		return
	}
	a.timer = time.AfterFunc(d, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.timer = nil
		a.flushLocked()
	})
}

// OnClick feeds one raw click through the heuristic detectors; any issues
// they emit go through the normal capture path.
func (a *Agent) OnClick(click Click) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("track: recovered from panic in OnClick: %v", r)
		}
	}()

	a.mu.Lock()
	issues := a.clicks.Observe(click)
	a.mu.Unlock()

	for _, issue := range issues {
		a.Track(models.CategoryUXIssue, issue.Action, issue.Data)
	}
}

// OnScroll feeds one scroll observation; newly crossed checkpoints emit
// engagement/scroll_depth events.
func (a *Agent) OnScroll(scrollTop, scrollHeight, viewportHeight float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("track: recovered from panic in OnScroll: %v", r)
		}
	}()

	depth := ScrollDepthPercent(scrollTop, scrollHeight, viewportHeight)

	a.mu.Lock()
	checkpoints := a.scroll.Observe(time.Now(), depth)
	if a.scroll.HasDeferred() && a.scrollTimer == nil && !a.closed {
		a.scrollTimer = time.AfterFunc(scrollDebounce, a.settleScroll)
	}
	a.mu.Unlock()

	for _, checkpoint := range checkpoints {
		a.Track(models.CategoryEngagement, "scroll_depth", map[string]any{"depth": checkpoint})
	}
}

// settleScroll evaluates the observation the debounce deferred once its
// window expires.
func (a *Agent) settleScroll() {
	a.mu.Lock()
	a.scrollTimer = nil
	if a.closed {
		a.mu.Unlock()
		return
	}
	checkpoints := a.scroll.Flush()
	a.mu.Unlock()

	for _, checkpoint := range checkpoints {
		a.Track(models.CategoryEngagement, "scroll_depth", map[string]any{"depth": checkpoint})
	}
}

// Navigate records a move to a new logical page: the scroll checkpoint set
// resets and a navigation/page_view event is captured.
func (a *Agent) Navigate(page, title string) {
	a.mu.Lock()
	if !a.closed {
		if a.scrollTimer != nil {
			a.scrollTimer.Stop()
			a.scrollTimer = nil
		}
		// A deferred scroll observation belongs to the page being left.
		for _, checkpoint := range a.scroll.Flush() {
			a.captureLocked(models.CategoryEngagement, "scroll_depth", map[string]any{"depth": checkpoint})
		}
	}
	a.page = page
	a.scroll.Reset()
	a.mu.Unlock()

	data := map[string]any{}
	if title != "" {
		data["title"] = title
	}
	a.Track(models.CategoryNavigation, "page_view", data)
}

// SetViewport updates the dimensions stamped onto subsequent events.
func (a *Agent) SetViewport(width, height int) {
	a.mu.Lock()
	a.viewportWidth = width
	a.viewportHeight = height
	a.mu.Unlock()
}

// Session returns a copy of the current session identity.
func (a *Agent) Session() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// User returns a copy of the current user identity.
func (a *Agent) User() User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// ClearIdentity drops the persistent user identity; the next page load
// mints a fresh one.
func (a *Agent) ClearIdentity() {
	a.ids.clearUser()
}

// Config returns the active configuration.
func (a *Agent) Config() Config {
	return a.cfg
}

// Close performs one final synchronous flush attempt, bounded by the send
// timeout, and tears the pipeline down.
func (a *Agent) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.scrollTimer != nil {
		a.scrollTimer.Stop()
		a.scrollTimer = nil
	}
	// The final flush carries any checkpoint the debounce was still holding.
	for _, checkpoint := range a.scroll.Flush() {
		a.captureLocked(models.CategoryEngagement, "scroll_depth", map[string]any{"depth": checkpoint})
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	snapshot := a.queue
	a.queue = nil
	meta := a.meta
	user := a.user
	a.mu.Unlock()

	if len(snapshot) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SendTimeout)
		defer cancel()
		if err := a.sender.Send(ctx, models.IngestRequest{Batch: snapshot, SessionMeta: &meta}); err != nil {
			log.Printf("track: final flush of %d events failed: %v", len(snapshot), err)
		}
	}

	a.ids.saveUser(user)
	a.wg.Wait()
}
