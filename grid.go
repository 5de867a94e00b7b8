package termsync

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxHistory bounds the number of row slots held locally.
	DefaultMaxHistory = 5000

	// DefaultViewportHeight is used until the embedding layer reports a size.
	DefaultViewportHeight = 24

	maxPredictionBytes    = 32
	maxPendingPredictions = 256
)

// RowKind discriminates the state of a row slot.
type RowKind uint8

const (
	// RowMissing marks a row known not to exist locally and not requested.
	RowMissing RowKind = iota
	// RowPending marks a row requested or expected but not yet received.
	RowPending
	// RowLoaded marks a row with received content.
	RowLoaded
)

func (k RowKind) String() string {
	switch k {
	case RowPending:
		return "pending"
	case RowLoaded:
		return "loaded"
	default:
		return "missing"
	}
}

// Cell is one resolved grid cell plus the seq of the write that produced it.
type Cell struct {
	Ch    rune
	Style StyleID
	Seq   Seq
}

func (c Cell) isBlank() bool { return c.Ch == 0 || c.Ch == ' ' }

type rowSlot struct {
	kind         RowKind
	cells        []Cell
	latestSeq    Seq
	logicalWidth int
}

// Row is a copied view of one row slot, safe to hold across grid mutations.
type Row struct {
	Index        uint64
	Kind         RowKind
	Cells        []Cell
	LatestSeq    Seq
	LogicalWidth int
}

// Text renders the row's committed content as a string, trailing blanks
// stripped.
func (r Row) Text() string {
	if r.Kind != RowLoaded {
		return ""
	}
	buf := make([]rune, 0, r.LogicalWidth)
	for i := 0; i < r.LogicalWidth && i < len(r.Cells); i++ {
		ch := r.Cells[i].Ch
		if ch == 0 {
			ch = ' '
		}
		buf = append(buf, ch)
	}
	return string(buf)
}

// Cursor is the externally visible cursor state.
type Cursor struct {
	Row           uint64
	Col           int
	Seq           Seq
	Visible       bool
	Blink         bool
	Authoritative bool
}

type predictedCell struct {
	ch  rune
	seq Seq
}

type predPosition struct {
	row uint64
	col int
	ch  rune
}

type pendingPrediction struct {
	positions []predPosition
	cursorRow uint64
	cursorCol int
	acked     bool
	ackedAt   time.Time
}

// Grid mirrors the remote PTY's screen and scrollback. It is single-threaded:
// the caller feeds frames in and reads copies out via Snapshot. No method
// blocks.
type Grid struct {
	logger *slog.Logger

	baseRow    uint64
	cols       int
	rows       []rowSlot
	maxHistory int

	followTail     bool
	viewportTop    uint64
	viewportHeight int
	historyTrimmed bool

	knownBase    uint64
	hasKnownBase bool

	styles map[StyleID]Style

	cursor             Cursor
	cursorSeen         bool // at least one authoritative cursor frame applied
	cursorValid        bool // cursor holds a meaningful position (frame or hint)
	deferredVisible    bool
	visibilityDeferred bool

	predictionsEnabled bool
	overlay            map[uint64]map[int]predictedCell
	pendings           map[Seq]*pendingPrediction
	predictedCursor    struct {
		row uint64
		col int
		seq Seq
		ok  bool
	}
}

// GridOption configures a Grid at construction time.
type GridOption func(*Grid)

// WithMaxHistory bounds the local scrollback buffer.
func WithMaxHistory(n int) GridOption {
	return func(g *Grid) {
		if n > 0 {
			g.maxHistory = n
		}
	}
}

// WithViewportHeight sets the initial visible row count.
func WithViewportHeight(h int) GridOption {
	return func(g *Grid) {
		if h > 0 {
			g.viewportHeight = h
		}
	}
}

// WithPredictions toggles speculative local echo.
func WithPredictions(enabled bool) GridOption {
	return func(g *Grid) { g.predictionsEnabled = enabled }
}

// WithGridLogger sets the grid's logger. The default discards nothing and
// writes through slog.Default.
func WithGridLogger(l *slog.Logger) GridOption {
	return func(g *Grid) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGrid builds an empty grid following the tail.
func NewGrid(opts ...GridOption) *Grid {
	g := &Grid{
		logger:             slog.Default(),
		maxHistory:         DefaultMaxHistory,
		viewportHeight:     DefaultViewportHeight,
		followTail:         true,
		predictionsEnabled: true,
		styles:             map[StyleID]Style{0: DefaultStyle},
		overlay:            make(map[uint64]map[int]predictedCell),
		pendings:           make(map[Seq]*pendingPrediction),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Reset drops all rows, styles except the default, cursor state, and
// predictions, returning the grid to its post-construction state. Used on
// session restart.
func (g *Grid) Reset() {
	g.baseRow = 0
	g.cols = 0
	g.rows = nil
	g.followTail = true
	g.viewportTop = 0
	g.historyTrimmed = false
	g.knownBase = 0
	g.hasKnownBase = false
	g.styles = map[StyleID]Style{0: DefaultStyle}
	g.cursor = Cursor{}
	g.cursorSeen = false
	g.cursorValid = false
	g.deferredVisible = false
	g.visibilityDeferred = false
	g.overlay = make(map[uint64]map[int]predictedCell)
	g.pendings = make(map[Seq]*pendingPrediction)
	g.predictedCursor.ok = false
}

// Cols returns the maximum width observed so far.
func (g *Grid) Cols() int { return g.cols }

// BaseRow returns the absolute index of buffer slot 0.
func (g *Grid) BaseRow() uint64 { return g.baseRow }

// HistoryTrimmed reports whether any scrollback has ever been evicted or
// trimmed. It latches true permanently once set.
func (g *Grid) HistoryTrimmed() bool { return g.historyTrimmed }

// CursorState returns the externally visible cursor state.
func (g *Grid) CursorState() Cursor { return g.cursor }

// ApplyUpdates applies a batch of content updates and an optional cursor
// frame. It reports whether anything observable changed: cell or style
// content, window bounds, or cursor position.
func (g *Grid) ApplyUpdates(updates []Update, batch ApplyBatch) bool {
	changed := false
	for i := range updates {
		u := &updates[i]
		if g.observeBounds(u, batch.Authoritative) {
			changed = true
		}
		if g.applyUpdate(u) {
			changed = true
		}
	}
	if batch.Cursor != nil {
		if g.applyCursorFrame(*batch.Cursor) {
			changed = true
		}
	}
	if g.revealDeferredCursor() {
		changed = true
	}
	return changed
}

func updateMinRow(u *Update) (uint64, bool) {
	switch u.Kind {
	case UpdateCell, UpdateRow, UpdateRowSegment:
		return u.Row, true
	case UpdateRect:
		if u.Rows[1] > u.Rows[0] {
			return u.Rows[0], true
		}
	}
	return 0, false
}

// observeBounds adjusts the window's lower bound from the rows an update
// touches. Authoritative updates pull knownBase down and may lower the base;
// unconfirmed updates only lower the base when strictly below it.
func (g *Grid) observeBounds(u *Update, authoritative bool) bool {
	row, ok := updateMinRow(u)
	if !ok {
		return false
	}
	if authoritative {
		if !g.hasKnownBase {
			g.hasKnownBase = true
			g.knownBase = row
		} else if row < g.knownBase {
			g.knownBase = row
		}
		if row < g.baseRow {
			g.lowerBaseTo(row)
			return true
		}
		return false
	}
	if row < g.baseRow {
		g.lowerBaseTo(row)
		return true
	}
	return false
}

// lowerBaseTo prepends pending placeholders so absolute row b becomes buffer
// slot 0. Existing data is never discarded.
func (g *Grid) lowerBaseTo(b uint64) {
	if b >= g.baseRow {
		return
	}
	n := g.baseRow - b
	pad := make([]rowSlot, n, n+uint64(len(g.rows)))
	for i := range pad {
		pad[i].kind = RowPending
	}
	g.rows = append(pad, g.rows...)
	g.baseRow = b
	dbg("grid: base lowered", "base", b, "prepended", n)
}

// touchRow ensures a slot exists for the absolute row and returns its index
// in the buffer. Rows below the base lower the base; rows beyond the end
// append pending placeholders. Overflow past capacity evicts other rows,
// never the touched one, so the returned index is always valid.
func (g *Grid) touchRow(row uint64) int {
	if row < g.baseRow {
		g.lowerBaseTo(row)
	}
	for uint64(len(g.rows)) <= row-g.baseRow {
		g.rows = append(g.rows, rowSlot{kind: RowPending})
	}
	g.evictOverflow(row)
	return int(row - g.baseRow)
}

// evictOverflow trims the buffer back to capacity. The oldest rows go first,
// but the slot for keep always survives: when keep sits at the front (a
// write below the old base at capacity), the newest rows are dropped
// instead.
func (g *Grid) evictOverflow(keep uint64) {
	over := len(g.rows) - g.maxHistory
	if over <= 0 {
		return
	}
	front := over
	if maxFront := int(keep - g.baseRow); front > maxFront {
		front = maxFront
	}
	if front > 0 {
		evictedEnd := g.baseRow + uint64(front)
		g.dropPredictionsBelow(evictedEnd)
		g.rows = g.rows[front:]
		g.baseRow = evictedEnd
		g.historyTrimmed = true
		over -= front
		dbg("grid: evicted history", "rows", front, "base", g.baseRow)
	}
	if over > 0 {
		cut := len(g.rows) - over
		if minLen := int(keep-g.baseRow) + 1; cut < minLen {
			cut = minLen
		}
		if cut < len(g.rows) {
			dropped := len(g.rows) - cut
			g.dropPredictionsAtOrAbove(g.baseRow + uint64(cut))
			g.rows = g.rows[:cut]
			g.historyTrimmed = true
			dbg("grid: evicted tail", "rows", dropped, "end", g.baseRow+uint64(cut))
		}
	}
}

func (g *Grid) slotAt(row uint64) *rowSlot {
	if row < g.baseRow {
		return nil
	}
	idx := row - g.baseRow
	if idx >= uint64(len(g.rows)) {
		return nil
	}
	return &g.rows[idx]
}

// ensureWidth grows a row's cell slice to at least w columns, filling new
// cells with blanks, and records the widest row ever seen.
func (g *Grid) ensureWidth(slot *rowSlot, w int) {
	for len(slot.cells) < w {
		slot.cells = append(slot.cells, Cell{Ch: ' '})
	}
	if w > g.cols {
		g.cols = w
	}
}

func recomputeLogicalWidth(slot *rowSlot) {
	for i := len(slot.cells) - 1; i >= 0; i-- {
		if !slot.cells[i].isBlank() {
			slot.logicalWidth = i + 1
			return
		}
	}
	slot.logicalWidth = 0
}

// writeCell applies the per-cell conflict rule at (row, col). A write with
// seq below the stored watermark is discarded for content but still clears
// any prediction occupying the cell.
func (g *Grid) writeCell(slot *rowSlot, row uint64, col int, seq Seq, packed PackedCell) bool {
	changed := g.removePredictionAt(row, col)
	c := &slot.cells[col]
	if seq < c.Seq {
		return changed
	}
	ch, style := packed.Unpack()
	if c.Ch != ch || c.Style != style || c.Seq != seq {
		changed = true
	}
	c.Ch = ch
	c.Style = style
	c.Seq = seq
	if seq > slot.latestSeq {
		slot.latestSeq = seq
	}
	slot.kind = RowLoaded
	return changed
}

func (g *Grid) applyUpdate(u *Update) bool {
	switch u.Kind {
	case UpdateCell:
		return g.applyCell(u.Row, u.Col, u.Seq, u.Cell)
	case UpdateRow:
		return g.applyRow(u.Row, u.Seq, u.Cells)
	case UpdateRowSegment:
		return g.applySegment(u.Row, u.StartCol, u.Seq, u.Cells)
	case UpdateRect:
		return g.applyRect(u.Rows, u.Cols, u.Seq, u.Cell)
	case UpdateTrim:
		return g.applyTrim(u.Row, u.Count)
	case UpdateStyle:
		return g.applyStyle(u.StyleID, u.Style)
	default:
		dbg("grid: unknown update kind", "kind", uint8(u.Kind))
		return false
	}
}

func (g *Grid) applyCell(row uint64, col int, seq Seq, packed PackedCell) bool {
	if col < 0 {
		return false
	}
	idx := g.touchRow(row)
	slot := &g.rows[idx]
	g.ensureWidth(slot, col+1)
	changed := g.writeCell(slot, row, col, seq, packed)
	if changed {
		recomputeLogicalWidth(slot)
	}
	if g.applyCursorHint(row, col+1) {
		changed = true
	}
	return changed
}

func (g *Grid) applyRow(row uint64, seq Seq, cells []PackedCell) bool {
	idx := g.touchRow(row)
	slot := &g.rows[idx]
	width := len(cells)
	if g.cols > width {
		width = g.cols
	}
	g.ensureWidth(slot, width)
	changed := false
	for col := 0; col < width; col++ {
		packed := PackedBlank
		if col < len(cells) {
			packed = cells[col]
		}
		if g.writeCell(slot, row, col, seq, packed) {
			changed = true
		}
	}
	recomputeLogicalWidth(slot)
	if g.applyCursorHint(row, slot.logicalWidth) {
		changed = true
	}
	return changed
}

func (g *Grid) applySegment(row uint64, startCol int, seq Seq, cells []PackedCell) bool {
	if startCol < 0 {
		return false
	}
	idx := g.touchRow(row)
	slot := &g.rows[idx]
	if len(cells) == 0 {
		// A zero-length rewrite carries no content but still implies the
		// cursor sits at the row's effective width.
		return g.applyCursorHint(row, slot.logicalWidth)
	}
	end := startCol + len(cells)
	g.ensureWidth(slot, end)
	changed := false
	for i, packed := range cells {
		if g.writeCell(slot, row, startCol+i, seq, packed) {
			changed = true
		}
	}
	if startCol == 0 {
		// A rewrite from column 0 implies the rest of the line was cleared.
		for col := end; col < len(slot.cells); col++ {
			if g.writeCell(slot, row, col, seq, PackedBlank) {
				changed = true
			}
		}
	}
	recomputeLogicalWidth(slot)
	if g.applyCursorHint(row, end) {
		changed = true
	}
	return changed
}

func (g *Grid) applyRect(rows [2]uint64, cols [2]int, seq Seq, packed PackedCell) bool {
	if rows[1] <= rows[0] || cols[1] <= cols[0] || cols[0] < 0 {
		return false
	}
	changed := false
	for row := rows[0]; row < rows[1]; row++ {
		idx := g.touchRow(row)
		slot := &g.rows[idx]
		g.ensureWidth(slot, cols[1])
		for col := cols[0]; col < cols[1]; col++ {
			if g.writeCell(slot, row, col, seq, packed) {
				changed = true
			}
		}
		recomputeLogicalWidth(slot)
	}
	lastRow := rows[1] - 1
	if slot := g.slotAt(lastRow); slot != nil {
		if g.applyCursorHint(lastRow, slot.logicalWidth) {
			changed = true
		}
	}
	return changed
}

func (g *Grid) applyTrim(start, count uint64) bool {
	if count == 0 {
		return false
	}
	end := start + count
	if end <= g.baseRow {
		// Already gone locally; still latch the trim marker.
		if !g.historyTrimmed {
			g.historyTrimmed = true
			return true
		}
		return false
	}
	g.dropPredictionsBelow(end)
	drop := end - g.baseRow
	if drop >= uint64(len(g.rows)) {
		g.rows = g.rows[:0]
	} else {
		g.rows = g.rows[drop:]
	}
	g.baseRow = end
	g.historyTrimmed = true
	if !g.hasKnownBase || g.knownBase < end {
		g.hasKnownBase = true
		g.knownBase = end
	}
	if g.cursor.Row >= start && g.cursor.Row < end {
		g.cursor.Row = end
		g.cursor.Col = 0
	}
	if g.viewportTop < end {
		g.viewportTop = end
	}
	dbg("grid: trimmed history", "start", start, "count", count, "base", g.baseRow)
	return true
}

func (g *Grid) applyStyle(id StyleID, style Style) bool {
	if existing, ok := g.styles[id]; ok && existing == style {
		return false
	}
	g.styles[id] = style
	return true
}

// Style returns the style bound to id, falling back to the default.
func (g *Grid) Style(id StyleID) Style {
	if s, ok := g.styles[id]; ok {
		return s
	}
	return DefaultStyle
}

// committedWidth is a row's logical width counting only confirmed content.
func (g *Grid) committedWidth(row uint64) int {
	if slot := g.slotAt(row); slot != nil && slot.kind == RowLoaded {
		return slot.logicalWidth
	}
	return 0
}

// MarkRowPending demotes a row to pending. Predictions anchored to a row
// demoted out of loaded are dropped.
func (g *Grid) MarkRowPending(row uint64) {
	idx := g.touchRow(row)
	slot := &g.rows[idx]
	if slot.kind == RowLoaded {
		g.clearPredictionsOnRow(row)
	}
	*slot = rowSlot{kind: RowPending}
}

// MarkRowMissing marks a buffered row as known-absent. Rows outside the
// buffer are left alone.
func (g *Grid) MarkRowMissing(row uint64) {
	slot := g.slotAt(row)
	if slot == nil {
		return
	}
	if slot.kind == RowLoaded {
		g.clearPredictionsOnRow(row)
	}
	*slot = rowSlot{kind: RowMissing}
}

// MarkPendingRange marks every row in the half-open range [start, end) as
// pending. Used when a backfill request for the range goes out.
func (g *Grid) MarkPendingRange(start, end uint64) {
	for row := start; row < end; row++ {
		g.MarkRowPending(row)
	}
}

// RowKindAt reports the state of an absolute row. Rows outside the buffer
// are missing.
func (g *Grid) RowKindAt(row uint64) RowKind {
	if slot := g.slotAt(row); slot != nil {
		return slot.kind
	}
	return RowMissing
}

// FirstGapBetween returns the first absolute row in [start, end) that is not
// loaded, or false if the whole range is loaded.
func (g *Grid) FirstGapBetween(start, end uint64) (uint64, bool) {
	for row := start; row < end; row++ {
		slot := g.slotAt(row)
		if slot == nil || slot.kind != RowLoaded {
			return row, true
		}
	}
	return 0, false
}

func (g *Grid) earliestLoadedRow() (uint64, bool) {
	for i := range g.rows {
		if g.rows[i].kind == RowLoaded {
			return g.baseRow + uint64(i), true
		}
	}
	return 0, false
}

func (g *Grid) highestLoadedRow() (uint64, bool) {
	for i := len(g.rows) - 1; i >= 0; i-- {
		if g.rows[i].kind == RowLoaded {
			return g.baseRow + uint64(i), true
		}
	}
	return 0, false
}

func (g *Grid) hasVisibleContent() bool {
	for i := range g.rows {
		if g.rows[i].kind == RowLoaded && g.rows[i].logicalWidth > 0 {
			return true
		}
	}
	return false
}

// SetFollowTail pins or unpins the viewport to the newest row.
func (g *Grid) SetFollowTail(follow bool) {
	g.followTail = follow
}

// FollowTail reports whether the viewport is pinned to the newest row.
func (g *Grid) FollowTail() bool { return g.followTail }

// ScrollLines moves the viewport by delta rows (negative is toward older
// history) and unpins it from the tail.
func (g *Grid) ScrollLines(delta int) {
	top := g.currentTop()
	if delta < 0 {
		back := uint64(-delta)
		if back > top {
			top = 0
		} else {
			top -= back
		}
	} else {
		top += uint64(delta)
	}
	end := g.baseRow + uint64(len(g.rows))
	if top > end {
		top = end
	}
	g.viewportTop = top
	g.followTail = false
}

// ScrollPages moves the viewport by whole screens.
func (g *Grid) ScrollPages(delta int) {
	g.ScrollLines(delta * g.viewportHeight)
}

// ScrollToTop jumps to the oldest buffered row and unpins the viewport.
func (g *Grid) ScrollToTop() {
	g.viewportTop = g.baseRow
	g.followTail = false
}

// ScrollToTail re-pins the viewport to the newest content.
func (g *Grid) ScrollToTail() {
	g.followTail = true
}

// SetViewport positions the top of an unpinned viewport.
func (g *Grid) SetViewport(top uint64) {
	g.viewportTop = top
	g.followTail = false
}

// SetViewportHeight records how many rows the embedding layer displays.
func (g *Grid) SetViewportHeight(h int) {
	if h > 0 {
		g.viewportHeight = h
	}
}

// currentTop resolves the viewport's top row under the current policy.
func (g *Grid) currentTop() uint64 {
	if !g.followTail {
		return g.clampTop(g.viewportTop)
	}
	anchor := g.tailAnchor()
	limit := uint64(g.viewportHeight)
	if limit == 0 || anchor+1 < limit {
		return 0
	}
	return anchor + 1 - limit
}

func (g *Grid) tailAnchor() uint64 {
	anchor, ok := g.highestLoadedRow()
	if g.cursorValid && (!ok || g.cursor.Row > anchor) {
		anchor = g.cursor.Row
		ok = true
	}
	if !ok {
		if len(g.rows) > 0 {
			return g.baseRow + uint64(len(g.rows)) - 1
		}
		return g.baseRow
	}
	return anchor
}

func (g *Grid) clampTop(top uint64) uint64 {
	if top < g.baseRow {
		return g.baseRow
	}
	end := g.baseRow + uint64(len(g.rows))
	maxTop := g.baseRow
	if uint64(g.viewportHeight) < uint64(len(g.rows)) {
		maxTop = end - uint64(g.viewportHeight)
	}
	if top > maxTop {
		return maxTop
	}
	return top
}

// VisibleRows returns copies of at most limit rows under the current
// viewport policy. Rows outside the buffer appear as synthetic missing rows
// so callers always get exactly the shape they asked for.
func (g *Grid) VisibleRows(limit int) []Row {
	if limit <= 0 {
		return nil
	}
	var start uint64
	if g.followTail {
		anchor := g.tailAnchor()
		if anchor+1 >= uint64(limit) {
			start = anchor + 1 - uint64(limit)
		}
	} else {
		start = g.clampTop(g.viewportTop)
	}
	out := make([]Row, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, g.rowView(start+uint64(i)))
	}
	return out
}

func (g *Grid) rowView(row uint64) Row {
	slot := g.slotAt(row)
	if slot == nil {
		return Row{Index: row, Kind: RowMissing}
	}
	out := Row{
		Index:        row,
		Kind:         slot.kind,
		LatestSeq:    slot.latestSeq,
		LogicalWidth: slot.logicalWidth,
	}
	if slot.kind == RowLoaded {
		out.Cells = make([]Cell, len(slot.cells))
		copy(out.Cells, slot.cells)
	}
	return out
}

// RowText returns the committed text of an absolute row, if loaded.
func (g *Grid) RowText(row uint64) (string, bool) {
	slot := g.slotAt(row)
	if slot == nil || slot.kind != RowLoaded {
		return "", false
	}
	return g.rowView(row).Text(), true
}

// Snapshot is a fully independent point-in-time copy of the grid's visible
// state. Nothing in it aliases live grid internals, so a renderer can walk
// it while the grid keeps mutating.
type Snapshot struct {
	BaseRow        uint64
	Cols           int
	ViewportTop    uint64
	ViewportHeight int
	FollowTail     bool
	HistoryTrimmed bool

	Rows   []Row
	Styles map[StyleID]Style
	Cursor Cursor

	EarliestLoaded uint64
	HighestLoaded  uint64
	HasLoaded      bool

	PredictedCursorRow uint64
	PredictedCursorCol int
	HasPredictedCursor bool

	overlay map[uint64]map[int]predictedCell
}

// PredictionAt looks up a speculative cell at an absolute position.
func (s *Snapshot) PredictionAt(row uint64, col int) (rune, Seq, bool) {
	if cols, ok := s.overlay[row]; ok {
		if pc, ok := cols[col]; ok {
			return pc.ch, pc.seq, true
		}
	}
	return 0, 0, false
}

// RowHasPredictions reports whether any speculative cell sits on a row.
func (s *Snapshot) RowHasPredictions(row uint64) bool {
	return len(s.overlay[row]) > 0
}

// RowAt finds a row in the snapshot's visible window by absolute index.
func (s *Snapshot) RowAt(row uint64) (Row, bool) {
	for i := range s.Rows {
		if s.Rows[i].Index == row {
			return s.Rows[i], true
		}
	}
	return Row{}, false
}

// RowText returns the committed text of an absolute row if it is loaded and
// inside the snapshot's visible window.
func (s *Snapshot) RowText(row uint64) (string, bool) {
	r, ok := s.RowAt(row)
	if !ok || r.Kind != RowLoaded {
		return "", false
	}
	return r.Text(), true
}

// Snapshot copies the current viewport window, style table, cursor, and
// prediction overlay.
func (g *Grid) Snapshot() *Snapshot {
	snap := &Snapshot{
		BaseRow:        g.baseRow,
		Cols:           g.cols,
		ViewportTop:    g.currentTop(),
		ViewportHeight: g.viewportHeight,
		FollowTail:     g.followTail,
		HistoryTrimmed: g.historyTrimmed,
		Rows:           g.VisibleRows(g.viewportHeight),
		Styles:         make(map[StyleID]Style, len(g.styles)),
		Cursor:         g.cursor,
		overlay:        make(map[uint64]map[int]predictedCell, len(g.overlay)),
	}
	for id, st := range g.styles {
		snap.Styles[id] = st
	}
	for row, cols := range g.overlay {
		cp := make(map[int]predictedCell, len(cols))
		for col, pc := range cols {
			cp[col] = pc
		}
		snap.overlay[row] = cp
	}
	if row, ok := g.earliestLoadedRow(); ok {
		snap.EarliestLoaded = row
		snap.HasLoaded = true
	}
	if row, ok := g.highestLoadedRow(); ok {
		snap.HighestLoaded = row
	}
	if g.predictedCursor.ok {
		snap.PredictedCursorRow = g.predictedCursor.row
		snap.PredictedCursorCol = g.predictedCursor.col
		snap.HasPredictedCursor = true
	}
	return snap
}
