package termsync

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultAckGrace is how long an acknowledged-but-unconfirmed prediction
	// stays visible before being pruned.
	DefaultAckGrace = 5 * time.Second

	defaultOutboundBuffer = 64
)

// SyncSession glues the grid, the speculative echo overlay, and the backfill
// controller into one frame-driven state machine. HandleFrame consumes host
// frames, SendInput produces input frames with local echo, and Tick advances
// time-based housekeeping. All methods are safe for concurrent use; the
// underlying engine stays single-threaded behind the session's lock.
type SyncSession struct {
	mu       sync.Mutex
	grid     *Grid
	backfill *BackfillController
	logger   *slog.Logger
	now      func() time.Time
	ackGrace time.Duration

	inputSeq Seq
	closed   bool

	outbound chan ClientFrame
	onChange func(*Snapshot)
}

// SessionOption configures a SyncSession.
type SessionOption func(*SyncSession)

// WithLogger sets the session logger, shared with the grid and backfill
// controller it constructs.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *SyncSession) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAckGrace overrides how long acknowledged predictions linger.
func WithAckGrace(d time.Duration) SessionOption {
	return func(s *SyncSession) {
		if d > 0 {
			s.ackGrace = d
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SyncSession) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGrid replaces the session's grid. The backfill controller is rebound
// to it.
func WithGrid(g *Grid) SessionOption {
	return func(s *SyncSession) {
		if g != nil {
			s.grid = g
		}
	}
}

// WithBackfillOptions forwards options to the session's backfill controller.
func WithBackfillOptions(opts ...BackfillOption) SessionOption {
	return func(s *SyncSession) {
		for _, opt := range opts {
			opt(s.backfill)
		}
	}
}

// WithGridOptions forwards options to the session's grid.
func WithGridOptions(opts ...GridOption) SessionOption {
	return func(s *SyncSession) {
		for _, opt := range opts {
			opt(s.grid)
		}
	}
}

// WithChangeHandler registers a callback invoked with a fresh snapshot after
// any observable state change. The callback runs on the caller's goroutine.
func WithChangeHandler(fn func(*Snapshot)) SessionOption {
	return func(s *SyncSession) { s.onChange = fn }
}

// NewSyncSession builds a session with a fresh grid and backfill controller.
func NewSyncSession(opts ...SessionOption) *SyncSession {
	s := &SyncSession{
		grid:     NewGrid(),
		logger:   slog.Default(),
		now:      time.Now,
		ackGrace: DefaultAckGrace,
		outbound: make(chan ClientFrame, defaultOutboundBuffer),
	}
	s.backfill = NewBackfillController(s.grid)
	for _, opt := range opts {
		opt(s)
	}
	// Rebind in case WithGrid replaced the grid after construction.
	s.backfill.grid = s.grid
	s.backfill.now = s.now
	return s
}

// Outbound exposes frames the session wants sent to the host. The transport
// layer drains this channel.
func (s *SyncSession) Outbound() <-chan ClientFrame { return s.outbound }

// HandleFrame routes one host frame into the engine. It reports whether
// observable state changed. A ShutdownFrame closes the session and returns
// ErrHostShutdown.
func (s *SyncSession) HandleFrame(f HostFrame) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}

	changed := false
	switch v := f.(type) {
	case HelloFrame:
		s.grid.Reset()
		s.backfill.HandleHello(v)
		changed = true
		dbg("session: hello", "subscription", v.SubscriptionID)
	case SnapshotFrame:
		changed = s.grid.ApplyUpdates(v.Updates, ApplyBatch{Authoritative: true, Cursor: v.Cursor})
	case DeltaFrame:
		changed = s.grid.ApplyUpdates(v.Updates, ApplyBatch{Cursor: v.Cursor})
	case HistoryBackfillFrame:
		changed = s.applyBackfillLocked(v)
	case CursorFrame:
		changed = s.grid.ApplyUpdates(nil, ApplyBatch{Cursor: &v})
	case InputAckFrame:
		changed = s.grid.AckPrediction(v.Seq, s.now())
	case HeartbeatFrame:
		// Nothing to do; transport liveness only.
	case ShutdownFrame:
		s.closed = true
		close(s.outbound)
		dbg("session: host shutdown", "reason", v.Reason)
		return false, ErrHostShutdown
	default:
		s.logger.Warn("termsync: ignoring unhandled host frame")
	}

	if changed {
		s.notifyLocked()
	}
	return changed, nil
}

// applyBackfillLocked applies a backfill response and reconciles the rows it
// covered: rows the host did not return inside the answered range do not
// exist and are marked missing rather than left pending.
func (s *SyncSession) applyBackfillLocked(f HistoryBackfillFrame) bool {
	changed := s.grid.ApplyUpdates(f.Updates, ApplyBatch{Authoritative: true, Cursor: f.Cursor})

	touched := make(map[uint64]struct{}, len(f.Updates))
	for i := range f.Updates {
		u := &f.Updates[i]
		switch u.Kind {
		case UpdateCell, UpdateRow, UpdateRowSegment:
			touched[u.Row] = struct{}{}
		case UpdateRect:
			for row := u.Rows[0]; row < u.Rows[1]; row++ {
				touched[row] = struct{}{}
			}
		}
	}
	end := f.StartRow + uint64(f.Count)
	for row := f.StartRow; row < end; row++ {
		if _, ok := touched[row]; ok {
			continue
		}
		// Leave rows loaded by earlier traffic alone; only unresolved slots
		// in the answered range are known-absent.
		if s.grid.RowKindAt(row) == RowLoaded {
			continue
		}
		s.grid.MarkRowMissing(row)
		changed = true
	}

	s.backfill.HandleBackfill(f)
	return changed
}

// SendInput assigns the next input seq, registers local echo, queues the
// frame for the transport, and returns it.
func (s *SyncSession) SendInput(data []byte) (InputFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return InputFrame{}, ErrSessionClosed
	}
	s.inputSeq++
	payload := make([]byte, len(data))
	copy(payload, data)
	changed := s.grid.RegisterPrediction(s.inputSeq, payload)
	frame := InputFrame{Seq: s.inputSeq, Data: payload}
	s.enqueueLocked(frame)
	if changed {
		s.notifyLocked()
	}
	return frame, nil
}

// Resize records the viewport height and tells the host about the new size.
func (s *SyncSession) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.grid.SetViewportHeight(rows)
	s.enqueueLocked(ResizeFrame{Cols: cols, Rows: rows})
	return nil
}

// Tick advances time-driven housekeeping: prediction pruning and backfill
// scheduling. The embedding layer calls it on a render tick or fixed
// interval. It reports whether observable state changed.
func (s *SyncSession) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	changed := s.grid.PruneAckedPredictions(s.now(), s.ackGrace)
	if req, ok := s.backfill.MaybeRequest(s.grid.Snapshot()); ok {
		s.enqueueLocked(req)
		changed = true
	}
	if changed {
		s.notifyLocked()
	}
	return changed
}

// Snapshot returns an independent copy of the current state.
func (s *SyncSession) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Snapshot()
}

// ScrollLines moves the viewport and unpins it from the tail.
func (s *SyncSession) ScrollLines(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.ScrollLines(delta)
}

// ScrollPages moves the viewport by whole screens.
func (s *SyncSession) ScrollPages(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.ScrollPages(delta)
}

// ScrollToTop jumps to the oldest buffered row.
func (s *SyncSession) ScrollToTop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.ScrollToTop()
}

// ScrollToTail re-pins the viewport to the newest content.
func (s *SyncSession) ScrollToTail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.ScrollToTail()
}

// SetFollowTail pins or unpins tail following.
func (s *SyncSession) SetFollowTail(follow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.SetFollowTail(follow)
}

// Close shuts the session down locally. Frames already queued remain
// readable from Outbound until drained.
func (s *SyncSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

func (s *SyncSession) enqueueLocked(f ClientFrame) {
	select {
	case s.outbound <- f:
	default:
		s.logger.Warn("termsync: outbound queue full, dropping frame")
	}
}

func (s *SyncSession) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.grid.Snapshot())
	}
}
