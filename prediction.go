package termsync

import "time"

// The prediction overlay is kept in two structures that must stay in sync:
// a row→col map for render-time lookup, and a per-seq entry listing every
// position that seq wrote plus its end cursor and ack time. Removing a
// position from one always removes it from the other.

// RegisterPrediction simulates local input bytes into predicted cells before
// the host confirms them. Each registration chains from the end cursor of
// the most recently registered still-pending prediction, so consecutive
// keystrokes build on each other rather than on stale committed state.
// It reports whether anything observable changed.
func (g *Grid) RegisterPrediction(seq Seq, data []byte) bool {
	if !g.predictionsEnabled {
		return false
	}
	if seq == 0 || len(data) == 0 || len(data) > maxPredictionBytes {
		return false
	}

	row, col := g.predictionStart()
	entry := &pendingPrediction{}
	changed := false

	for _, b := range data {
		switch {
		case b == '\r':
			col = 0
		case b == '\n':
			row++
			col = 0
		case b == 0x08 || b == 0x7f:
			if col > 0 {
				col--
			} else if row > 0 {
				row--
				if w := g.committedWidth(row); w > 0 {
					col = w - 1
				} else {
					col = 0
				}
			}
			g.putPrediction(entry, seq, row, col, ' ')
			changed = true
		case b < 0x20:
			// Other control bytes have host-side effects we cannot guess.
		default:
			g.putPrediction(entry, seq, row, col, rune(b))
			col++
			changed = true
		}
	}

	entry.cursorRow = row
	entry.cursorCol = col
	g.pendings[seq] = entry

	if len(g.pendings) > maxPendingPredictions {
		// Safety valve: a stalled connection can pile up unacked echo
		// without bound. Dropping the whole overlay is blunt but keeps the
		// screen honest.
		g.clearAllPredictions()
		dbg("prediction: overlay reset, pending cap exceeded", "cap", maxPendingPredictions)
		return true
	}

	g.predictedCursor.row = row
	g.predictedCursor.col = col
	g.predictedCursor.seq = seq
	g.predictedCursor.ok = true
	if g.cursor.Row != row || g.cursor.Col != col {
		g.cursor.Row = row
		g.cursor.Col = col
		changed = true
	}
	g.cursorValid = true
	return changed
}

// predictionStart picks where simulation begins: the latest pending
// prediction's end cursor, else the current cursor, else the end of the
// highest loaded row's content.
func (g *Grid) predictionStart() (uint64, int) {
	if p := g.latestPending(); p != nil {
		return p.cursorRow, p.cursorCol
	}
	if g.cursorValid {
		return g.cursor.Row, g.cursor.Col
	}
	if row, ok := g.highestLoadedRow(); ok {
		return row, g.committedWidth(row)
	}
	return g.baseRow, 0
}

func (g *Grid) latestPending() *pendingPrediction {
	var (
		best    *pendingPrediction
		bestSeq Seq
	)
	for seq, p := range g.pendings {
		if best == nil || seq > bestSeq {
			best = p
			bestSeq = seq
		}
	}
	return best
}

// putPrediction writes one speculative cell into the overlay and records the
// position against its owning entry. A position stolen from another seq is
// removed from that seq's entry to keep the two structures consistent.
func (g *Grid) putPrediction(entry *pendingPrediction, seq Seq, row uint64, col int, ch rune) {
	if col < 0 {
		return
	}
	cols, ok := g.overlay[row]
	if !ok {
		cols = make(map[int]predictedCell)
		g.overlay[row] = cols
	}
	if prev, ok := cols[col]; ok && prev.seq != seq {
		g.detachPosition(prev.seq, row, col)
	}
	cols[col] = predictedCell{ch: ch, seq: seq}

	for i := range entry.positions {
		if entry.positions[i].row == row && entry.positions[i].col == col {
			entry.positions[i].ch = ch
			return
		}
	}
	entry.positions = append(entry.positions, predPosition{row: row, col: col, ch: ch})
}

// detachPosition removes one position from a seq's entry without touching
// the overlay.
func (g *Grid) detachPosition(seq Seq, row uint64, col int) {
	p, ok := g.pendings[seq]
	if !ok {
		return
	}
	for i := range p.positions {
		if p.positions[i].row == row && p.positions[i].col == col {
			p.positions = append(p.positions[:i], p.positions[i+1:]...)
			return
		}
	}
}

// removePredictionAt clears a speculative cell, keeping both overlay
// structures in sync. Returns whether anything was removed.
func (g *Grid) removePredictionAt(row uint64, col int) bool {
	cols, ok := g.overlay[row]
	if !ok {
		return false
	}
	pc, ok := cols[col]
	if !ok {
		return false
	}
	delete(cols, col)
	if len(cols) == 0 {
		delete(g.overlay, row)
	}
	g.detachPosition(pc.seq, row, col)
	return true
}

func (g *Grid) clearPredictionsOnRow(row uint64) bool {
	cols, ok := g.overlay[row]
	if !ok {
		return false
	}
	for col, pc := range cols {
		g.detachPosition(pc.seq, row, col)
	}
	delete(g.overlay, row)
	if g.predictedCursor.ok && g.predictedCursor.row == row {
		g.refreshPredictedCursor()
	}
	return true
}

func (g *Grid) dropPredictionsBelow(end uint64) {
	var stale []Seq
	for seq, p := range g.pendings {
		for _, pos := range p.positions {
			if pos.row < end {
				stale = append(stale, seq)
				break
			}
		}
	}
	for _, seq := range stale {
		g.clearPredictionSeq(seq)
	}
}

func (g *Grid) dropPredictionsAtOrAbove(start uint64) {
	var stale []Seq
	for seq, p := range g.pendings {
		for _, pos := range p.positions {
			if pos.row >= start {
				stale = append(stale, seq)
				break
			}
		}
	}
	for _, seq := range stale {
		g.clearPredictionSeq(seq)
	}
}

// dropPredictionsFromColumn removes predictions on a row at or past col.
// Used when an authoritative cursor frame proves those cells were already
// consumed by fresher server content.
func (g *Grid) dropPredictionsFromColumn(row uint64, col int) bool {
	cols, ok := g.overlay[row]
	if !ok {
		return false
	}
	changed := false
	for c, pc := range cols {
		if c >= col {
			delete(cols, c)
			g.detachPosition(pc.seq, row, c)
			changed = true
		}
	}
	if len(cols) == 0 {
		delete(g.overlay, row)
	}
	return changed
}

func (g *Grid) predictedWidth(row uint64) int {
	w := 0
	for col := range g.overlay[row] {
		if col+1 > w {
			w = col + 1
		}
	}
	return w
}

// clearPredictionSeq removes a prediction entirely: every overlay cell it
// still owns plus its pending entry.
func (g *Grid) clearPredictionSeq(seq Seq) {
	p, ok := g.pendings[seq]
	if !ok {
		return
	}
	for _, pos := range p.positions {
		if cols, ok := g.overlay[pos.row]; ok {
			if pc, ok := cols[pos.col]; ok && pc.seq == seq {
				delete(cols, pos.col)
				if len(cols) == 0 {
					delete(g.overlay, pos.row)
				}
			}
		}
	}
	delete(g.pendings, seq)
	if g.predictedCursor.ok && g.predictedCursor.seq == seq {
		g.refreshPredictedCursor()
	}
}

func (g *Grid) clearAllPredictions() {
	g.overlay = make(map[uint64]map[int]predictedCell)
	g.pendings = make(map[Seq]*pendingPrediction)
	g.predictedCursor.ok = false
}

// refreshPredictedCursor repoints the overlay cursor at the latest remaining
// pending prediction, or clears it when none remain.
func (g *Grid) refreshPredictedCursor() {
	var (
		best    *pendingPrediction
		bestSeq Seq
	)
	for seq, p := range g.pendings {
		if best == nil || seq > bestSeq {
			best = p
			bestSeq = seq
		}
	}
	if best == nil {
		g.predictedCursor.ok = false
		return
	}
	g.predictedCursor.row = best.cursorRow
	g.predictedCursor.col = best.cursorCol
	g.predictedCursor.seq = bestSeq
	g.predictedCursor.ok = true
}

// predictionCommitted reports whether every position of a prediction has
// been confirmed: either its overlay cell was already overwritten, or the
// committed grid cell underneath holds exactly the predicted character.
func (g *Grid) predictionCommitted(seq Seq, p *pendingPrediction) bool {
	for _, pos := range p.positions {
		if cols, ok := g.overlay[pos.row]; ok {
			if pc, ok := cols[pos.col]; ok && pc.seq == seq {
				if !g.cellMatches(pos.row, pos.col, pos.ch) {
					return false
				}
			}
		}
	}
	return true
}

// predictionConflicts reports whether the host wrote real content under any
// of a prediction's positions that differs from what was predicted.
func (g *Grid) predictionConflicts(p *pendingPrediction) bool {
	for _, pos := range p.positions {
		slot := g.slotAt(pos.row)
		if slot == nil || slot.kind != RowLoaded || pos.col >= len(slot.cells) {
			continue
		}
		c := slot.cells[pos.col]
		if c.Seq > 0 && c.Ch != pos.ch {
			return true
		}
	}
	return false
}

func (g *Grid) cellMatches(row uint64, col int, ch rune) bool {
	slot := g.slotAt(row)
	if slot == nil || slot.kind != RowLoaded || col >= len(slot.cells) {
		return false
	}
	c := slot.cells[col]
	return c.Seq > 0 && c.Ch == ch
}

// AckPrediction marks a prediction acknowledged by the host. A prediction
// whose every position is already confirmed is dropped immediately; the rest
// stay visible until content conflicts or the ack grace period runs out.
func (g *Grid) AckPrediction(seq Seq, now time.Time) bool {
	p, ok := g.pendings[seq]
	if !ok {
		return false
	}
	changed := false
	if !p.acked {
		p.acked = true
		p.ackedAt = now
		changed = true
	}
	if g.predictionCommitted(seq, p) {
		g.clearPredictionSeq(seq)
		changed = true
	}
	return changed
}

// PruneAckedPredictions garbage-collects predictions that are committed, in
// conflict with real content, or aged past grace since acknowledgment.
func (g *Grid) PruneAckedPredictions(now time.Time, grace time.Duration) bool {
	var stale []Seq
	for seq, p := range g.pendings {
		if !p.acked {
			continue
		}
		switch {
		case g.predictionCommitted(seq, p):
			stale = append(stale, seq)
		case g.predictionConflicts(p):
			stale = append(stale, seq)
		case now.Sub(p.ackedAt) >= grace:
			stale = append(stale, seq)
		}
	}
	for _, seq := range stale {
		g.clearPredictionSeq(seq)
	}
	return len(stale) > 0
}

// PendingPredictions returns how many registered predictions remain
// unresolved.
func (g *Grid) PendingPredictions() int { return len(g.pendings) }
