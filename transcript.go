package termsync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Transcript persists the text of loaded rows to SQLite so a session's
// scrollback survives the process. Rows are keyed by absolute index and
// upserted as fresher content arrives, mirroring the grid's own
// last-seq-wins rule.
type Transcript struct {
	db     *sql.DB
	dbPath string
}

// TranscriptLine is one persisted row.
type TranscriptLine struct {
	Row       uint64
	Seq       Seq
	Text      string
	UpdatedAt time.Time
}

// OpenTranscript opens (creating if needed) a transcript database.
func OpenTranscript(dbPath string) (*Transcript, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping transcript database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS transcript_rows (
			abs_row    INTEGER PRIMARY KEY,
			seq        INTEGER NOT NULL,
			text       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transcript schema: %w", err)
	}

	return &Transcript{db: db, dbPath: dbPath}, nil
}

// RecordSnapshot upserts every loaded row in the snapshot's window. Rows
// whose stored seq is newer than the snapshot's are left alone.
func (t *Transcript) RecordSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transcript write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcript_rows (abs_row, seq, text, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(abs_row) DO UPDATE SET
			seq = excluded.seq,
			text = excluded.text,
			updated_at = excluded.updated_at
		WHERE excluded.seq >= transcript_rows.seq
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transcript upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, row := range snap.Rows {
		if row.Kind != RowLoaded {
			continue
		}
		if _, err := stmt.ExecContext(ctx, int64(row.Index), int64(row.LatestSeq), row.Text(), now); err != nil {
			return fmt.Errorf("failed to upsert transcript row %d: %w", row.Index, err)
		}
	}
	return tx.Commit()
}

// Lines reads back persisted rows starting at startRow, at most limit.
func (t *Transcript) Lines(ctx context.Context, startRow uint64, limit int) ([]TranscriptLine, error) {
	query := `
		SELECT abs_row, seq, text, updated_at
		FROM transcript_rows
		WHERE abs_row >= ?
		ORDER BY abs_row ASC
	`
	args := []interface{}{int64(startRow)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript rows: %w", err)
	}
	defer rows.Close()

	var lines []TranscriptLine
	for rows.Next() {
		var (
			absRow    int64
			seq       int64
			text      string
			updatedAt int64
		)
		if err := rows.Scan(&absRow, &seq, &text, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		lines = append(lines, TranscriptLine{
			Row:       uint64(absRow),
			Seq:       Seq(seq),
			Text:      text,
			UpdatedAt: time.UnixMilli(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript rows: %w", err)
	}
	return lines, nil
}

// Close releases the database handle.
func (t *Transcript) Close() error {
	return t.db.Close()
}
