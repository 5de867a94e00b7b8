package termsync

import (
	"fmt"
	"testing"
	"time"
)

func seedRow(t *testing.T, g *Grid, row uint64, seq Seq, text string) {
	t.Helper()
	g.ApplyUpdates([]Update{RowUpdate(row, seq, packString(text))}, ApplyBatch{Authoritative: true})
}

func TestPredictionChainsFromPendingCursor(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")

	if !g.RegisterPrediction(1, []byte("a")) {
		t.Fatal("first prediction reported no change")
	}
	if !g.RegisterPrediction(2, []byte("b")) {
		t.Fatal("second prediction reported no change")
	}

	snap := g.Snapshot()
	if ch, seq, ok := snap.PredictionAt(0, 2); !ok || ch != 'a' || seq != 1 {
		t.Errorf("PredictionAt(0,2) = %q/%d/%v, want 'a'/1/true", ch, seq, ok)
	}
	if ch, seq, ok := snap.PredictionAt(0, 3); !ok || ch != 'b' || seq != 2 {
		t.Errorf("PredictionAt(0,3) = %q/%d/%v, want 'b'/2/true", ch, seq, ok)
	}
	if snap.Cursor.Row != 0 || snap.Cursor.Col != 4 {
		t.Errorf("cursor = (%d,%d), want (0,4)", snap.Cursor.Row, snap.Cursor.Col)
	}
	if !snap.HasPredictedCursor || snap.PredictedCursorCol != 4 {
		t.Errorf("predicted cursor = %d/%v, want 4/true", snap.PredictedCursorCol, snap.HasPredictedCursor)
	}
}

func TestRegisterPredictionRejects(t *testing.T) {
	long := make([]byte, maxPredictionBytes+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name string
		grid *Grid
		seq  Seq
		data []byte
	}{
		{"zero seq", NewGrid(), 0, []byte("a")},
		{"empty input", NewGrid(), 1, nil},
		{"oversized input", NewGrid(), 1, long},
		{"disabled", NewGrid(WithPredictions(false)), 1, []byte("a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.grid.RegisterPrediction(tt.seq, tt.data) {
				t.Error("RegisterPrediction accepted input it should reject")
			}
			if n := tt.grid.PendingPredictions(); n != 0 {
				t.Errorf("pending = %d, want 0", n)
			}
		})
	}
}

func TestPredictionCarriageReturn(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "hi")

	g.RegisterPrediction(1, []byte("\rX"))
	snap := g.Snapshot()
	if ch, _, ok := snap.PredictionAt(0, 0); !ok || ch != 'X' {
		t.Errorf("PredictionAt(0,0) = %q/%v, want 'X'/true", ch, ok)
	}
	if snap.Cursor.Col != 1 {
		t.Errorf("cursor col = %d, want 1", snap.Cursor.Col)
	}
}

func TestPredictionLineFeed(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "hi")

	g.RegisterPrediction(1, []byte("\nY"))
	snap := g.Snapshot()
	if ch, _, ok := snap.PredictionAt(1, 0); !ok || ch != 'Y' {
		t.Errorf("PredictionAt(1,0) = %q/%v, want 'Y'/true", ch, ok)
	}
	if snap.Cursor.Row != 1 || snap.Cursor.Col != 1 {
		t.Errorf("cursor = (%d,%d), want (1,1)", snap.Cursor.Row, snap.Cursor.Col)
	}
}

func TestPredictionBackspaceBlanksCell(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "hello")

	// Cursor sits at (0,5) from the write hint; DEL steps back and blanks.
	g.RegisterPrediction(1, []byte{0x7f})
	snap := g.Snapshot()
	if ch, _, ok := snap.PredictionAt(0, 4); !ok || ch != ' ' {
		t.Errorf("PredictionAt(0,4) = %q/%v, want blank/true", ch, ok)
	}
	if snap.Cursor.Col != 4 {
		t.Errorf("cursor col = %d, want 4", snap.Cursor.Col)
	}
}

func TestPredictionBackspaceWrapsToPreviousRow(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "abc")
	g.ApplyUpdates(nil, ApplyBatch{
		Authoritative: true,
		Cursor:        &CursorFrame{Row: 1, Col: 0, Seq: 2, Visible: true},
	})

	g.RegisterPrediction(1, []byte{0x08})
	snap := g.Snapshot()
	if ch, _, ok := snap.PredictionAt(0, 2); !ok || ch != ' ' {
		t.Errorf("PredictionAt(0,2) = %q/%v, want blank/true", ch, ok)
	}
	if snap.Cursor.Row != 0 || snap.Cursor.Col != 2 {
		t.Errorf("cursor = (%d,%d), want (0,2)", snap.Cursor.Row, snap.Cursor.Col)
	}
}

func TestPredictionIgnoresControlBytes(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "ab")

	if g.RegisterPrediction(1, []byte{0x1b}) {
		t.Error("ESC moved nothing but reported a change")
	}
	if _, _, ok := g.Snapshot().PredictionAt(0, 2); ok {
		t.Error("ESC produced a speculative cell")
	}
	// The registration is still tracked so a later ack can resolve it.
	if n := g.PendingPredictions(); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestAckClearsEchoedPrediction(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(7, []byte("a"))

	// Host echo lands on the predicted cell, then the ack arrives.
	g.ApplyUpdates([]Update{CellUpdate(0, 2, 2, PackCell('a', 0))}, ApplyBatch{})
	if !g.AckPrediction(7, time.Now()) {
		t.Fatal("ack of a known prediction reported no change")
	}
	if n := g.PendingPredictions(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	if _, _, ok := g.Snapshot().PredictionAt(0, 2); ok {
		t.Error("committed prediction still in overlay")
	}
}

func TestAckBeforeEchoKeepsPrediction(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(7, []byte("a"))

	g.AckPrediction(7, time.Now())
	if n := g.PendingPredictions(); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
	if _, _, ok := g.Snapshot().PredictionAt(0, 2); !ok {
		t.Error("unconfirmed prediction dropped by ack")
	}
}

func TestPruneDropsConflictedPrediction(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(7, []byte("a"))
	g.AckPrediction(7, time.Now())

	// Host puts different content where the echo was expected.
	g.ApplyUpdates([]Update{CellUpdate(0, 2, 2, PackCell('z', 0))}, ApplyBatch{})
	if !g.PruneAckedPredictions(time.Now(), time.Minute) {
		t.Fatal("prune removed nothing")
	}
	if n := g.PendingPredictions(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
	if text, _ := g.RowText(0); text != "ABz" {
		t.Errorf("row 0 = %q, want \"ABz\"", text)
	}
}

func TestPruneGraceExpiry(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(7, []byte("a"))

	t0 := time.Unix(1000, 0)
	g.AckPrediction(7, t0)

	if g.PruneAckedPredictions(t0.Add(4*time.Second), 5*time.Second) {
		t.Error("prune fired before the grace period ran out")
	}
	if !g.PruneAckedPredictions(t0.Add(5*time.Second), 5*time.Second) {
		t.Error("prune did not fire at grace expiry")
	}
	if n := g.PendingPredictions(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestPruneSkipsUnackedPredictions(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(7, []byte("a"))

	if g.PruneAckedPredictions(time.Unix(1e9, 0), time.Nanosecond) {
		t.Error("prune touched an unacked prediction")
	}
	if n := g.PendingPredictions(); n != 1 {
		t.Errorf("pending = %d, want 1", n)
	}
}

func TestPredictionCapacityReset(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "x")

	for seq := Seq(1); seq <= Seq(maxPendingPredictions); seq++ {
		g.RegisterPrediction(seq, []byte(fmt.Sprintf("%d", seq%10)))
	}
	if n := g.PendingPredictions(); n != maxPendingPredictions {
		t.Fatalf("pending = %d, want %d", n, maxPendingPredictions)
	}

	// One more blows past the cap and resets the whole overlay.
	g.RegisterPrediction(Seq(maxPendingPredictions+1), []byte("y"))
	if n := g.PendingPredictions(); n != 0 {
		t.Errorf("pending after reset = %d, want 0", n)
	}
	if g.Snapshot().RowHasPredictions(0) {
		t.Error("overlay cells survived the capacity reset")
	}
}

func TestCursorFrameSupersedesPrediction(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	g.RegisterPrediction(3, []byte("a")) // speculative cell at (0,2)

	g.ApplyUpdates(nil, ApplyBatch{
		Authoritative: true,
		Cursor:        &CursorFrame{Row: 0, Col: 1, Seq: 5, Visible: true},
	})

	snap := g.Snapshot()
	if snap.HasPredictedCursor {
		t.Error("predicted cursor survived a newer authoritative frame")
	}
	if _, _, ok := snap.PredictionAt(0, 2); ok {
		t.Error("prediction past the reported column survived")
	}
	if snap.Cursor.Row != 0 || snap.Cursor.Col != 1 {
		t.Errorf("cursor = (%d,%d), want (0,1)", snap.Cursor.Row, snap.Cursor.Col)
	}
}

func TestHostWriteDisplacesPrediction(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 2, "AB")
	g.ApplyUpdates(nil, ApplyBatch{
		Authoritative: true,
		Cursor:        &CursorFrame{Row: 0, Col: 1, Seq: 1, Visible: true},
	})
	g.RegisterPrediction(3, []byte("a")) // speculative overwrite of 'B'

	// Even a stale write clears the speculative cell underneath it.
	g.ApplyUpdates([]Update{CellUpdate(0, 1, 1, PackCell('q', 0))}, ApplyBatch{})
	if _, _, ok := g.Snapshot().PredictionAt(0, 1); ok {
		t.Error("prediction survived a host write at its position")
	}
	if text, _ := g.RowText(0); text != "AB" {
		t.Errorf("row 0 = %q, want \"AB\"", text)
	}
}

func TestTrimDropsIntersectingPredictions(t *testing.T) {
	g := NewGrid()
	seedRow(t, g, 0, 1, "AB")
	seedRow(t, g, 3, 1, "CD")
	g.RegisterPrediction(3, []byte("a")) // lands at (3,2) behind the tail cursor

	g.ApplyUpdates([]Update{TrimUpdate(0, 2)}, ApplyBatch{Authoritative: true})
	if _, _, ok := g.Snapshot().PredictionAt(3, 2); !ok {
		t.Error("prediction above the trim boundary dropped")
	}

	g.ApplyUpdates([]Update{TrimUpdate(0, 4)}, ApplyBatch{Authoritative: true})
	if g.PendingPredictions() != 0 {
		t.Error("prediction intersecting trimmed rows survived")
	}
}
