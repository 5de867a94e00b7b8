package termsync

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestTranscript(t *testing.T) *Transcript {
	t.Helper()
	tr, err := OpenTranscript(filepath.Join(t.TempDir(), "transcript.db"))
	if err != nil {
		t.Fatalf("OpenTranscript: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestTranscriptRecordAndRead(t *testing.T) {
	tr := openTestTranscript(t)
	ctx := context.Background()

	g := NewGrid()
	g.ApplyUpdates([]Update{
		RowUpdate(0, 1, packString("alpha")),
		RowUpdate(1, 2, packString("beta")),
	}, ApplyBatch{Authoritative: true})

	if err := tr.RecordSnapshot(ctx, g.Snapshot()); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	lines, err := tr.Lines(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0].Row != 0 || lines[0].Text != "alpha" || lines[0].Seq != 1 {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Text != "beta" {
		t.Errorf("line 1 = %+v", lines[1])
	}
}

func TestTranscriptStaleSeqDoesNotOverwrite(t *testing.T) {
	tr := openTestTranscript(t)
	ctx := context.Background()

	g := NewGrid()
	g.ApplyUpdates([]Update{RowUpdate(0, 5, packString("fresh"))}, ApplyBatch{Authoritative: true})
	if err := tr.RecordSnapshot(ctx, g.Snapshot()); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	stale := NewGrid()
	stale.ApplyUpdates([]Update{RowUpdate(0, 2, packString("stale"))}, ApplyBatch{Authoritative: true})
	if err := tr.RecordSnapshot(ctx, stale.Snapshot()); err != nil {
		t.Fatalf("RecordSnapshot stale: %v", err)
	}

	lines, err := tr.Lines(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 1 || lines[0].Text != "fresh" || lines[0].Seq != 5 {
		t.Errorf("lines = %+v, want single \"fresh\" row at seq 5", lines)
	}
}

func TestTranscriptLinesRangeAndLimit(t *testing.T) {
	tr := openTestTranscript(t)
	ctx := context.Background()

	g := NewGrid(WithViewportHeight(10))
	updates := make([]Update, 0, 6)
	for i := uint64(0); i < 6; i++ {
		updates = append(updates, RowUpdate(i, 1, packString("row")))
	}
	g.ApplyUpdates(updates, ApplyBatch{Authoritative: true})
	if err := tr.RecordSnapshot(ctx, g.Snapshot()); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}

	lines, err := tr.Lines(ctx, 2, 3)
	if err != nil {
		t.Fatalf("Lines: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	if lines[0].Row != 2 || lines[2].Row != 4 {
		t.Errorf("rows = %d..%d, want 2..4", lines[0].Row, lines[2].Row)
	}
}
