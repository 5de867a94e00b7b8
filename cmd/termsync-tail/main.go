// Command termsync-tail attaches to a termsync host over a websocket and
// mirrors the remote terminal into the local one: committed rows, local
// speculative echo, and on-demand scrollback paging.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	termsync "github.com/termsync/termsync-go"
)

func main() {
	var (
		url        = flag.String("url", "", "websocket URL of the termsync host (required)")
		configPath = flag.String("config", "", "path to a YAML config file")
		transcript = flag.String("transcript", "", "path to a SQLite transcript database")
		token      = flag.String("token", "", "host auth token (falls back to TERMSYNC_TOKEN, then the OS keyring)")
		saveToken  = flag.Bool("save-token", false, "store the given -token in the OS keyring and exit")
		tickEvery  = flag.Duration("tick", 50*time.Millisecond, "housekeeping tick interval")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *saveToken {
		if *token == "" {
			fmt.Fprintln(os.Stderr, "termsync-tail: -save-token requires -token")
			os.Exit(2)
		}
		if err := termsync.StoreToken(*token); err != nil {
			fmt.Fprintf(os.Stderr, "termsync-tail: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *url == "" {
		fmt.Fprintln(os.Stderr, "termsync-tail: -url is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
		termsync.SetDebug(true)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*url, *configPath, *transcript, *token, *tickEvery, logger); err != nil {
		fmt.Fprintf(os.Stderr, "termsync-tail: %v\n", err)
		os.Exit(1)
	}
}

func run(url, configPath, transcriptPath, token string, tickEvery time.Duration, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []termsync.SessionOption{termsync.WithLogger(logger)}
	if configPath != "" {
		cfg, err := termsync.LoadConfig(configPath)
		if err != nil {
			return err
		}
		opts = append(opts, cfg.SessionOptions()...)
		if transcriptPath == "" {
			transcriptPath = cfg.TranscriptPath
		}
	}

	store := termsync.NewStore()
	defer store.Close()
	opts = append(opts, termsync.WithChangeHandler(store.Publish))

	session := termsync.NewSyncSession(opts...)

	var tr *termsync.Transcript
	if transcriptPath != "" {
		var err error
		tr, err = termsync.OpenTranscript(transcriptPath)
		if err != nil {
			return err
		}
		defer tr.Close()
	}

	var dialOpts []termsync.DialOption
	tok, err := termsync.ResolveToken(token)
	switch {
	case err == nil:
		dialOpts = append(dialOpts, termsync.WithHeader(termsync.AuthHeader(tok)))
	case errors.Is(err, termsync.ErrNoToken):
		logger.Debug("no auth token configured, connecting anonymously")
	default:
		return err
	}

	conn, err := termsync.DialSession(ctx, url, session, dialOpts...)
	if err != nil {
		return err
	}
	defer conn.Close()
	if v := conn.HostVersion(); v != "" {
		logger.Debug("connected", "host_version", v)
	}

	stdin := int(os.Stdin.Fd())
	interactive := term.IsTerminal(stdin)
	if interactive {
		cols, rows, err := term.GetSize(stdin)
		if err != nil {
			return fmt.Errorf("failed to read terminal size: %w", err)
		}
		if err := session.Resize(cols, rows); err != nil {
			return err
		}

		oldState, err := term.MakeRaw(stdin)
		if err != nil {
			return fmt.Errorf("failed to enter raw mode: %w", err)
		}
		defer term.Restore(stdin, oldState)

		go forwardInput(session, stop, logger)
	}

	go housekeep(ctx, session, tr, tickEvery, logger)
	go render(ctx, store)

	err = conn.Wait()
	fmt.Fprint(os.Stdout, "\x1b[?25h\r\n")
	return err
}

// forwardInput pumps local keystrokes into the session. Ctrl-Q detaches.
func forwardInput(session *termsync.SyncSession, stop func(), logger *slog.Logger) {
	buf := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			data := buf[:n]
			if len(data) == 1 && data[0] == 0x11 { // Ctrl-Q
				logger.Info("detaching")
				stop()
				return
			}
			if _, err := session.SendInput(data); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// housekeep drives prediction pruning, backfill scheduling, and transcript
// persistence on fixed intervals.
func housekeep(ctx context.Context, session *termsync.SyncSession, tr *termsync.Transcript, tickEvery time.Duration, logger *slog.Logger) {
	tick := time.NewTicker(tickEvery)
	defer tick.Stop()

	var persist <-chan time.Time
	if tr != nil {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		persist = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			session.Tick()
		case <-persist:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := tr.RecordSnapshot(writeCtx, session.Snapshot()); err != nil {
				logger.Warn("transcript write failed", "error", err)
			}
			cancel()
		}
	}
}

// render repaints the screen whenever a fresh snapshot arrives.
func render(ctx context.Context, store *termsync.Store) {
	snaps, cancel := store.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			paint(snap)
		}
	}
}

func paint(snap *termsync.Snapshot) {
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J") // home + clear

	for i, row := range snap.Rows {
		if i > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString(renderRow(snap, row))
	}

	// Cursor: convert absolute row to a window-relative position.
	if snap.Cursor.Visible {
		for i, row := range snap.Rows {
			if row.Index == snap.Cursor.Row {
				fmt.Fprintf(&b, "\x1b[%d;%dH\x1b[?25h", i+1, snap.Cursor.Col+1)
				break
			}
		}
	} else {
		b.WriteString("\x1b[?25l")
	}

	os.Stdout.WriteString(b.String())
}

// renderRow flattens one row to plain text with the speculative overlay
// applied on top of committed content.
func renderRow(snap *termsync.Snapshot, row termsync.Row) string {
	width := row.LogicalWidth
	if snap.RowHasPredictions(row.Index) {
		for col := width; col < snap.Cols; col++ {
			if _, _, ok := snap.PredictionAt(row.Index, col); ok && col+1 > width {
				width = col + 1
			}
		}
	}
	if width == 0 {
		return ""
	}

	runes := make([]rune, width)
	for i := range runes {
		runes[i] = ' '
	}
	for i := 0; i < width && i < len(row.Cells); i++ {
		if row.Cells[i].Ch != 0 {
			runes[i] = row.Cells[i].Ch
		}
	}
	for col := 0; col < width; col++ {
		if ch, _, ok := snap.PredictionAt(row.Index, col); ok {
			runes[col] = ch
		}
	}
	return string(runes)
}
