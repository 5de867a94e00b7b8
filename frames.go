package termsync

// Wire framing for the sync protocol. Every frame is
// [Type:1][Flags:1][Length:4][Payload:Length] with big-endian integers
// throughout. The update payload encoding mirrors the Update variants
// one-to-one; unknown frame types surface ErrUnknownFrame so callers can
// decide whether to ignore or abort.

import "encoding/binary"

// Frame types.
const (
	// Host -> Client
	frameHello           byte = 0x01
	frameSnapshot        byte = 0x02
	frameDelta           byte = 0x03
	frameHistoryBackfill byte = 0x04
	frameCursor          byte = 0x05
	frameInputAck        byte = 0x06
	frameHeartbeat       byte = 0x07
	frameShutdown        byte = 0x08

	// Client -> Host
	frameInput           byte = 0x20
	frameRequestBackfill byte = 0x21
	frameResize          byte = 0x22
)

// Frame flags.
const (
	flagCursorPresent byte = 0x01
	flagMore          byte = 0x02
)

// Cursor payload flags.
const (
	cursorVisible byte = 0x01
	cursorBlink   byte = 0x02
)

const frameHeaderSize = 6

func appendHeader(buf []byte, typ, flags byte) []byte {
	buf = append(buf, typ, flags)
	return append(buf, 0, 0, 0, 0) // length patched by finishFrame
}

func finishFrame(buf []byte) []byte {
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(buf)-frameHeaderSize))
	return buf
}

func appendU64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func appendU32(buf []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, v)
}

func appendU16(buf []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(buf, v)
}

func appendCursor(buf []byte, c *CursorFrame) []byte {
	buf = appendU64(buf, c.Row)
	buf = appendU32(buf, uint32(c.Col))
	buf = appendU64(buf, uint64(c.Seq))
	var flags byte
	if c.Visible {
		flags |= cursorVisible
	}
	if c.Blink {
		flags |= cursorBlink
	}
	return append(buf, flags)
}

func appendUpdate(buf []byte, u *Update) []byte {
	buf = append(buf, byte(u.Kind))
	switch u.Kind {
	case UpdateCell:
		buf = appendU64(buf, u.Row)
		buf = appendU32(buf, uint32(u.Col))
		buf = appendU64(buf, uint64(u.Seq))
		buf = appendU64(buf, uint64(u.Cell))
	case UpdateRow:
		buf = appendU64(buf, u.Row)
		buf = appendU64(buf, uint64(u.Seq))
		buf = appendU16(buf, uint16(len(u.Cells)))
		for _, c := range u.Cells {
			buf = appendU64(buf, uint64(c))
		}
	case UpdateRowSegment:
		buf = appendU64(buf, u.Row)
		buf = appendU32(buf, uint32(u.StartCol))
		buf = appendU64(buf, uint64(u.Seq))
		buf = appendU16(buf, uint16(len(u.Cells)))
		for _, c := range u.Cells {
			buf = appendU64(buf, uint64(c))
		}
	case UpdateRect:
		buf = appendU64(buf, u.Rows[0])
		buf = appendU64(buf, u.Rows[1])
		buf = appendU32(buf, uint32(u.Cols[0]))
		buf = appendU32(buf, uint32(u.Cols[1]))
		buf = appendU64(buf, uint64(u.Seq))
		buf = appendU64(buf, uint64(u.Cell))
	case UpdateTrim:
		buf = appendU64(buf, u.Row)
		buf = appendU64(buf, u.Count)
	case UpdateStyle:
		buf = appendU32(buf, uint32(u.StyleID))
		buf = appendU32(buf, uint32(u.Style.FG))
		buf = appendU32(buf, uint32(u.Style.BG))
		buf = append(buf, byte(u.Style.Attrs))
	}
	return buf
}

func appendUpdates(buf []byte, updates []Update) []byte {
	buf = appendU32(buf, uint32(len(updates)))
	for i := range updates {
		buf = appendUpdate(buf, &updates[i])
	}
	return buf
}

// EncodeHostFrame serializes a host frame to its wire form.
func EncodeHostFrame(f HostFrame) []byte {
	switch v := f.(type) {
	case HelloFrame:
		buf := appendHeader(nil, frameHello, 0)
		buf = appendU64(buf, v.SubscriptionID)
		buf = appendU32(buf, uint32(v.Cols))
		return finishFrame(buf)
	case SnapshotFrame:
		return encodeBatch(frameSnapshot, v.Updates, v.Cursor)
	case DeltaFrame:
		return encodeBatch(frameDelta, v.Updates, v.Cursor)
	case HistoryBackfillFrame:
		var flags byte
		if v.More {
			flags |= flagMore
		}
		if v.Cursor != nil {
			flags |= flagCursorPresent
		}
		buf := appendHeader(nil, frameHistoryBackfill, flags)
		buf = appendU64(buf, v.SubscriptionID)
		buf = appendU64(buf, v.RequestID)
		buf = appendU64(buf, v.StartRow)
		buf = appendU32(buf, v.Count)
		buf = appendUpdates(buf, v.Updates)
		if v.Cursor != nil {
			buf = appendCursor(buf, v.Cursor)
		}
		return finishFrame(buf)
	case CursorFrame:
		buf := appendHeader(nil, frameCursor, 0)
		buf = appendCursor(buf, &v)
		return finishFrame(buf)
	case InputAckFrame:
		buf := appendHeader(nil, frameInputAck, 0)
		buf = appendU64(buf, uint64(v.Seq))
		return finishFrame(buf)
	case HeartbeatFrame:
		return finishFrame(appendHeader(nil, frameHeartbeat, 0))
	case ShutdownFrame:
		buf := appendHeader(nil, frameShutdown, 0)
		buf = append(buf, v.Reason...)
		return finishFrame(buf)
	}
	return nil
}

func encodeBatch(typ byte, updates []Update, cursor *CursorFrame) []byte {
	var flags byte
	if cursor != nil {
		flags |= flagCursorPresent
	}
	buf := appendHeader(nil, typ, flags)
	buf = appendUpdates(buf, updates)
	if cursor != nil {
		buf = appendCursor(buf, cursor)
	}
	return finishFrame(buf)
}

// EncodeClientFrame serializes a client frame to its wire form.
func EncodeClientFrame(f ClientFrame) []byte {
	switch v := f.(type) {
	case InputFrame:
		buf := appendHeader(nil, frameInput, 0)
		buf = appendU64(buf, uint64(v.Seq))
		buf = append(buf, v.Data...)
		return finishFrame(buf)
	case RequestBackfillFrame:
		buf := appendHeader(nil, frameRequestBackfill, 0)
		buf = appendU64(buf, v.SubscriptionID)
		buf = appendU64(buf, v.RequestID)
		buf = appendU64(buf, v.StartRow)
		buf = appendU32(buf, v.Count)
		return finishFrame(buf)
	case ResizeFrame:
		buf := appendHeader(nil, frameResize, 0)
		buf = appendU32(buf, uint32(v.Cols))
		buf = appendU32(buf, uint32(v.Rows))
		return finishFrame(buf)
	}
	return nil
}

// frameReader walks a payload with bounds checking. After any failed read the
// error sticks and subsequent reads return zero values.
type frameReader struct {
	data []byte
	off  int
	err  error
}

func (r *frameReader) u8() byte {
	if r.err != nil || r.off+1 > len(r.data) {
		r.err = ErrPayloadTruncated
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *frameReader) u16() uint16 {
	if r.err != nil || r.off+2 > len(r.data) {
		r.err = ErrPayloadTruncated
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *frameReader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.data) {
		r.err = ErrPayloadTruncated
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *frameReader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.data) {
		r.err = ErrPayloadTruncated
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v
}

func (r *frameReader) rest() []byte {
	if r.err != nil {
		return nil
	}
	v := r.data[r.off:]
	r.off = len(r.data)
	return v
}

func (r *frameReader) cursor() CursorFrame {
	c := CursorFrame{
		Row: r.u64(),
		Col: int(r.u32()),
		Seq: Seq(r.u64()),
	}
	flags := r.u8()
	c.Visible = flags&cursorVisible != 0
	c.Blink = flags&cursorBlink != 0
	return c
}

func (r *frameReader) update() Update {
	u := Update{Kind: UpdateKind(r.u8())}
	switch u.Kind {
	case UpdateCell:
		u.Row = r.u64()
		u.Col = int(r.u32())
		u.Seq = Seq(r.u64())
		u.Cell = PackedCell(r.u64())
	case UpdateRow:
		u.Row = r.u64()
		u.Seq = Seq(r.u64())
		u.Cells = r.cells()
	case UpdateRowSegment:
		u.Row = r.u64()
		u.StartCol = int(r.u32())
		u.Seq = Seq(r.u64())
		u.Cells = r.cells()
	case UpdateRect:
		u.Rows[0] = r.u64()
		u.Rows[1] = r.u64()
		u.Cols[0] = int(r.u32())
		u.Cols[1] = int(r.u32())
		u.Seq = Seq(r.u64())
		u.Cell = PackedCell(r.u64())
	case UpdateTrim:
		u.Row = r.u64()
		u.Count = r.u64()
	case UpdateStyle:
		u.StyleID = StyleID(r.u32())
		u.Style.FG = PackedColor(r.u32())
		u.Style.BG = PackedColor(r.u32())
		u.Style.Attrs = StyleAttrs(r.u8())
	default:
		if r.err == nil {
			r.err = ErrUnknownUpdate
		}
	}
	return u
}

func (r *frameReader) cells() []PackedCell {
	n := int(r.u16())
	if r.err != nil || r.off+n*8 > len(r.data) {
		r.err = ErrPayloadTruncated
		return nil
	}
	out := make([]PackedCell, n)
	for i := range out {
		out[i] = PackedCell(r.u64())
	}
	return out
}

func (r *frameReader) updates() []Update {
	n := int(r.u32())
	if r.err != nil {
		return nil
	}
	out := make([]Update, 0, min(n, 4096))
	for i := 0; i < n; i++ {
		u := r.update()
		if r.err != nil {
			return nil
		}
		out = append(out, u)
	}
	return out
}

func splitFrame(data []byte) (typ, flags byte, payload []byte, err error) {
	if len(data) < frameHeaderSize {
		return 0, 0, nil, ErrFrameTooShort
	}
	length := binary.BigEndian.Uint32(data[2:6])
	if len(data) < frameHeaderSize+int(length) {
		return 0, 0, nil, ErrPayloadTruncated
	}
	return data[0], data[1], data[frameHeaderSize : frameHeaderSize+int(length)], nil
}

// DecodeHostFrame parses a host-originated frame from its wire form.
func DecodeHostFrame(data []byte) (HostFrame, error) {
	typ, flags, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	r := &frameReader{data: payload}
	switch typ {
	case frameHello:
		f := HelloFrame{SubscriptionID: r.u64(), Cols: int(r.u32())}
		return r.finishHost(f)
	case frameSnapshot:
		f := SnapshotFrame{Updates: r.updates()}
		if flags&flagCursorPresent != 0 {
			c := r.cursor()
			f.Cursor = &c
		}
		return r.finishHost(f)
	case frameDelta:
		f := DeltaFrame{Updates: r.updates()}
		if flags&flagCursorPresent != 0 {
			c := r.cursor()
			f.Cursor = &c
		}
		return r.finishHost(f)
	case frameHistoryBackfill:
		f := HistoryBackfillFrame{
			SubscriptionID: r.u64(),
			RequestID:      r.u64(),
			StartRow:       r.u64(),
			Count:          r.u32(),
			More:           flags&flagMore != 0,
		}
		f.Updates = r.updates()
		if flags&flagCursorPresent != 0 {
			c := r.cursor()
			f.Cursor = &c
		}
		return r.finishHost(f)
	case frameCursor:
		return r.finishHost(r.cursor())
	case frameInputAck:
		return r.finishHost(InputAckFrame{Seq: Seq(r.u64())})
	case frameHeartbeat:
		return HeartbeatFrame{}, nil
	case frameShutdown:
		return ShutdownFrame{Reason: string(r.rest())}, nil
	default:
		return nil, ErrUnknownFrame
	}
}

// DecodeClientFrame parses a client-originated frame from its wire form.
func DecodeClientFrame(data []byte) (ClientFrame, error) {
	typ, _, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	r := &frameReader{data: payload}
	switch typ {
	case frameInput:
		seq := Seq(r.u64())
		raw := r.rest()
		if r.err != nil {
			return nil, r.err
		}
		data := make([]byte, len(raw))
		copy(data, raw)
		return InputFrame{Seq: seq, Data: data}, nil
	case frameRequestBackfill:
		f := RequestBackfillFrame{
			SubscriptionID: r.u64(),
			RequestID:      r.u64(),
			StartRow:       r.u64(),
			Count:          r.u32(),
		}
		return r.finishClient(f)
	case frameResize:
		f := ResizeFrame{Cols: int(r.u32()), Rows: int(r.u32())}
		return r.finishClient(f)
	default:
		return nil, ErrUnknownFrame
	}
}

func (r *frameReader) finishHost(f HostFrame) (HostFrame, error) {
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

func (r *frameReader) finishClient(f ClientFrame) (ClientFrame, error) {
	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}
