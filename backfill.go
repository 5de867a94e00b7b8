package termsync

import (
	"log/slog"
	"time"
)

const (
	// DefaultBackfillThrottle is the minimum spacing between outbound
	// history requests.
	DefaultBackfillThrottle = 200 * time.Millisecond

	// DefaultBackfillLookahead is how close (in rows) the viewport must be
	// to the edge of loaded history before prefetching kicks in.
	DefaultBackfillLookahead = 64

	// DefaultMaxRowsPerRequest caps how many rows one request may cover.
	DefaultMaxRowsPerRequest = 256
)

type pendingRange struct {
	id       uint64
	start    uint64
	end      uint64
	issuedAt time.Time
}

// BackfillController pages older scrollback into the grid on demand. It
// watches the viewport's position relative to loaded history and emits
// throttled, deduplicated request_backfill frames. Like the grid it is
// single-threaded and purely reactive: the caller invokes MaybeRequest on
// its own cadence (typically a render tick).
//
// There is no timeout or retry here. An unanswered request stays pending,
// blocking re-requests of that range, until a response or superseding
// content covers it; reconnect policy lives in the session layer.
type BackfillController struct {
	grid   *Grid
	logger *slog.Logger
	now    func() time.Time

	throttle  time.Duration
	lookahead uint64
	maxRows   uint32

	subscriptionID uint64
	subscribed     bool

	nextRequestID uint64
	pending       []pendingRange
	lastRequest   time.Time
	throttling    bool
}

// BackfillOption configures a BackfillController.
type BackfillOption func(*BackfillController)

// WithBackfillThrottle overrides the request spacing.
func WithBackfillThrottle(d time.Duration) BackfillOption {
	return func(c *BackfillController) {
		if d > 0 {
			c.throttle = d
		}
	}
}

// WithBackfillLookahead overrides the prefetch distance in rows.
func WithBackfillLookahead(rows uint64) BackfillOption {
	return func(c *BackfillController) { c.lookahead = rows }
}

// WithMaxRowsPerRequest overrides the per-request row cap.
func WithMaxRowsPerRequest(rows uint32) BackfillOption {
	return func(c *BackfillController) {
		if rows > 0 {
			c.maxRows = rows
		}
	}
}

// WithBackfillClock injects a clock, for tests.
func WithBackfillClock(now func() time.Time) BackfillOption {
	return func(c *BackfillController) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBackfillLogger sets the controller's logger.
func WithBackfillLogger(l *slog.Logger) BackfillOption {
	return func(c *BackfillController) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewBackfillController builds a controller bound to a grid.
func NewBackfillController(grid *Grid, opts ...BackfillOption) *BackfillController {
	c := &BackfillController{
		grid:          grid,
		logger:        slog.Default(),
		now:           time.Now,
		throttle:      DefaultBackfillThrottle,
		lookahead:     DefaultBackfillLookahead,
		maxRows:       DefaultMaxRowsPerRequest,
		nextRequestID: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleHello binds the controller to a new subscription. Any pending ranges
// belong to the old subscription and are dropped.
func (c *BackfillController) HandleHello(f HelloFrame) {
	c.subscriptionID = f.SubscriptionID
	c.subscribed = true
	c.pending = c.pending[:0]
	c.throttling = false
	dbg("backfill: subscribed", "subscription", f.SubscriptionID)
}

// HandleBackfill clears pending ranges covered by a response. When the host
// signals more history remains, the throttle resets so the next MaybeRequest
// can fire immediately.
func (c *BackfillController) HandleBackfill(f HistoryBackfillFrame) {
	end := f.StartRow + uint64(f.Count)
	kept := c.pending[:0]
	for _, r := range c.pending {
		if rangesOverlap(r.start, r.end, f.StartRow, end) {
			continue
		}
		kept = append(kept, r)
	}
	c.pending = kept
	if f.More {
		c.throttling = false
	}
	dbg("backfill: response", "start", f.StartRow, "count", f.Count, "more", f.More)
}

// Subscribed reports whether a hello frame has been seen.
func (c *BackfillController) Subscribed() bool { return c.subscribed }

// PendingRanges returns how many requests are awaiting responses.
func (c *BackfillController) PendingRanges() int { return len(c.pending) }

func rangesOverlap(aStart, aEnd, bStart, bEnd uint64) bool {
	return aStart < bEnd && bStart < aEnd
}

// pruneSuperseded drops pending ranges that content has caught up with. A
// range goes out with every row marked pending, so any loaded row inside it
// means a response was applied without clearing it (lost or reordered) or a
// snapshot covered the rows first. Either way the range no longer guards a
// live request and the remaining gap is fair to request again.
func (c *BackfillController) pruneSuperseded() {
	kept := c.pending[:0]
	for _, r := range c.pending {
		if c.rangeHasLoaded(r.start, r.end) {
			dbg("backfill: pending range superseded", "id", r.id, "start", r.start, "end", r.end)
			continue
		}
		kept = append(kept, r)
	}
	c.pending = kept
}

func (c *BackfillController) rangeHasLoaded(start, end uint64) bool {
	for row := start; row < end; row++ {
		if c.grid.RowKindAt(row) == RowLoaded {
			return true
		}
	}
	return false
}

// MaybeRequest decides whether older history should be fetched right now.
// It returns a request frame and true when one should go out; the range is
// marked pending in the grid as a side effect.
func (c *BackfillController) MaybeRequest(snap *Snapshot) (RequestBackfillFrame, bool) {
	if !c.subscribed {
		return RequestBackfillFrame{}, false
	}
	if snap.FollowTail {
		return RequestBackfillFrame{}, false
	}
	now := c.now()
	if c.throttling && now.Sub(c.lastRequest) < c.throttle {
		return RequestBackfillFrame{}, false
	}
	if !snap.HasLoaded {
		return RequestBackfillFrame{}, false
	}
	earliest := snap.EarliestLoaded
	if earliest == 0 {
		return RequestBackfillFrame{}, false
	}
	if snap.ViewportTop > earliest && snap.ViewportTop-earliest > c.lookahead {
		return RequestBackfillFrame{}, false
	}

	start := uint64(0)
	if earliest > uint64(c.maxRows) {
		start = earliest - uint64(c.maxRows)
	}
	c.pruneSuperseded()
	for _, r := range c.pending {
		if rangesOverlap(r.start, r.end, start, earliest) {
			return RequestBackfillFrame{}, false
		}
	}

	id := c.nextRequestID
	c.nextRequestID++
	c.pending = append(c.pending, pendingRange{id: id, start: start, end: earliest, issuedAt: now})
	c.grid.MarkPendingRange(start, earliest)
	c.lastRequest = now
	c.throttling = true

	req := RequestBackfillFrame{
		SubscriptionID: c.subscriptionID,
		RequestID:      id,
		StartRow:       start,
		Count:          uint32(earliest - start),
	}
	dbg("backfill: request", "id", id, "start", start, "count", req.Count)
	return req, true
}
