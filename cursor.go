package termsync

// applyCursorHint infers a cursor position from a content write. Hints run
// only in heuristic mode, before any authoritative cursor frame has arrived.
// The column is clamped to the row's committed width, except that a row
// carrying live predictions may extend to the predicted width so local echo
// is not visually truncated.
func (g *Grid) applyCursorHint(row uint64, col int) bool {
	if g.cursor.Authoritative {
		return false
	}
	limit := g.committedWidth(row)
	if pw := g.predictedWidth(row); pw > limit {
		limit = pw
	}
	if col > limit {
		col = limit
	}
	if col < 0 {
		col = 0
	}
	if g.cursorValid && g.cursor.Row == row && g.cursor.Col == col {
		return false
	}
	g.cursor.Row = row
	g.cursor.Col = col
	g.cursorValid = true
	return true
}

// applyCursorFrame applies the host's authoritative cursor report. Beyond
// moving the cursor it reconciles the prediction overlay: a frame with a seq
// at or above the predicted cursor's supersedes it, and predictions on the
// reported row at or past the reported column are stale echo and dropped.
func (g *Grid) applyCursorFrame(f CursorFrame) bool {
	col := f.Col
	if col < 0 {
		col = 0
	}
	if col > g.cols {
		col = g.cols
	}

	if g.predictedCursor.ok && f.Seq >= g.predictedCursor.seq {
		g.predictedCursor.ok = false
	}
	g.dropPredictionsFromColumn(f.Row, col)

	visible := f.Visible
	if !g.cursorSeen && f.Row == 0 && col == 0 && !g.hasVisibleContent() {
		// The very first report often lands at the origin before any content
		// frame. Showing it immediately flashes a cursor on an empty screen,
		// so hold visibility until row 0 has something in it.
		g.deferredVisible = f.Visible
		g.visibilityDeferred = true
		visible = false
	} else {
		g.visibilityDeferred = false
	}

	prev := g.cursor
	g.cursor = Cursor{
		Row:           f.Row,
		Col:           col,
		Seq:           f.Seq,
		Visible:       visible,
		Blink:         f.Blink,
		Authoritative: true,
	}
	g.cursorSeen = true
	g.cursorValid = true
	return prev != g.cursor
}

// revealDeferredCursor flips a suppressed first cursor report visible once
// its row gains committed content.
func (g *Grid) revealDeferredCursor() bool {
	if !g.visibilityDeferred || g.committedWidth(g.cursor.Row) == 0 {
		return false
	}
	g.visibilityDeferred = false
	if g.cursor.Visible == g.deferredVisible {
		return false
	}
	g.cursor.Visible = g.deferredVisible
	return true
}
