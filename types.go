package termsync

// Seq is a host-assigned sequence number. Sequence numbers increase
// monotonically per session and decide conflicts: an update wins a cell when
// its seq is greater than or equal to the seq already stored there.
type Seq uint64

// UpdateKind discriminates the variants of Update.
type UpdateKind uint8

const (
	UpdateCell UpdateKind = iota + 1
	UpdateRow
	UpdateRowSegment
	UpdateRect
	UpdateTrim
	UpdateStyle
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateCell:
		return "cell"
	case UpdateRow:
		return "row"
	case UpdateRowSegment:
		return "row_segment"
	case UpdateRect:
		return "rect"
	case UpdateTrim:
		return "trim"
	case UpdateStyle:
		return "style"
	default:
		return "unknown"
	}
}

// Update is one grid mutation from the host. Kind selects which fields are
// meaningful:
//
//	cell:        Row, Col, Seq, Cell
//	row:         Row, Seq, Cells
//	row_segment: Row, StartCol, Seq, Cells
//	rect:        Rows, Cols, Seq, Cell (uniform fill)
//	trim:        Row (start), Count
//	style:       StyleID, Style
type Update struct {
	Kind     UpdateKind
	Row      uint64
	Col      int
	StartCol int
	Rows     [2]uint64 // rect row range, half-open
	Cols     [2]int    // rect column range, half-open
	Count    uint64    // trim row count
	Seq      Seq
	Cell     PackedCell
	Cells    []PackedCell
	StyleID  StyleID
	Style    Style
}

// CellUpdate builds a single-cell update.
func CellUpdate(row uint64, col int, seq Seq, cell PackedCell) Update {
	return Update{Kind: UpdateCell, Row: row, Col: col, Seq: seq, Cell: cell}
}

// RowUpdate builds a whole-row update.
func RowUpdate(row uint64, seq Seq, cells []PackedCell) Update {
	return Update{Kind: UpdateRow, Row: row, Seq: seq, Cells: cells}
}

// SegmentUpdate builds a partial-row update starting at startCol.
func SegmentUpdate(row uint64, startCol int, seq Seq, cells []PackedCell) Update {
	return Update{Kind: UpdateRowSegment, Row: row, StartCol: startCol, Seq: seq, Cells: cells}
}

// RectUpdate builds a uniform rectangular fill over half-open row and
// column ranges.
func RectUpdate(rowStart, rowEnd uint64, colStart, colEnd int, seq Seq, cell PackedCell) Update {
	return Update{Kind: UpdateRect, Rows: [2]uint64{rowStart, rowEnd}, Cols: [2]int{colStart, colEnd}, Seq: seq, Cell: cell}
}

// TrimUpdate builds a history-trim notification covering rows
// [start, start+count).
func TrimUpdate(start, count uint64) Update {
	return Update{Kind: UpdateTrim, Row: start, Count: count}
}

// StyleUpdate builds a style-table upsert.
func StyleUpdate(id StyleID, style Style) Update {
	return Update{Kind: UpdateStyle, StyleID: id, Style: style}
}

// CursorFrame is the host's authoritative cursor report.
type CursorFrame struct {
	Row     uint64
	Col     int
	Seq     Seq
	Visible bool
	Blink   bool
}

// ApplyBatch carries the context of a batch of updates into the grid.
// Authoritative batches (snapshots, backfill responses) may lower the known
// history origin; deltas may not.
type ApplyBatch struct {
	Authoritative bool
	Cursor        *CursorFrame
}

// HostFrame is implemented by every frame a host can send to a client.
type HostFrame interface{ hostFrame() }

// HelloFrame opens (or reopens) a subscription. Receiving it resets all
// per-subscription state on the client.
type HelloFrame struct {
	SubscriptionID uint64
	Cols           int
}

// SnapshotFrame is an authoritative batch describing current content.
type SnapshotFrame struct {
	Updates []Update
	Cursor  *CursorFrame
}

// DeltaFrame is an incremental, non-authoritative batch.
type DeltaFrame struct {
	Updates []Update
	Cursor  *CursorFrame
}

// HistoryBackfillFrame answers a RequestBackfillFrame with content for the
// row range [StartRow, StartRow+Count). More signals that additional history
// below the range still exists on the host.
type HistoryBackfillFrame struct {
	SubscriptionID uint64
	RequestID      uint64
	StartRow       uint64
	Count          uint32
	More           bool
	Updates        []Update
	Cursor         *CursorFrame
}

// InputAckFrame acknowledges client input up to Seq.
type InputAckFrame struct {
	Seq Seq
}

// HeartbeatFrame keeps the connection warm. It carries no state.
type HeartbeatFrame struct{}

// ShutdownFrame announces that the host is closing the session.
type ShutdownFrame struct {
	Reason string
}

func (HelloFrame) hostFrame()           {}
func (SnapshotFrame) hostFrame()        {}
func (DeltaFrame) hostFrame()           {}
func (HistoryBackfillFrame) hostFrame() {}
func (CursorFrame) hostFrame()          {}
func (InputAckFrame) hostFrame()        {}
func (HeartbeatFrame) hostFrame()       {}
func (ShutdownFrame) hostFrame()        {}

// ClientFrame is implemented by every frame a client sends to the host.
type ClientFrame interface{ clientFrame() }

// InputFrame carries raw input bytes tagged with the client's input seq.
type InputFrame struct {
	Seq  Seq
	Data []byte
}

// RequestBackfillFrame asks the host for historical rows
// [StartRow, StartRow+Count).
type RequestBackfillFrame struct {
	SubscriptionID uint64
	RequestID      uint64
	StartRow       uint64
	Count          uint32
}

// ResizeFrame reports the client's viewport dimensions.
type ResizeFrame struct {
	Cols int
	Rows int
}

func (InputFrame) clientFrame()           {}
func (RequestBackfillFrame) clientFrame() {}
func (ResizeFrame) clientFrame()          {}
