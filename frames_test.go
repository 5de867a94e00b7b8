package termsync

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestHostFrameRoundTrip(t *testing.T) {
	cursor := &CursorFrame{Row: 7, Col: 12, Seq: 99, Visible: true, Blink: true}
	tests := []struct {
		name  string
		frame HostFrame
	}{
		{"hello", HelloFrame{SubscriptionID: 42, Cols: 80}},
		{"snapshot with cursor", SnapshotFrame{
			Updates: []Update{
				CellUpdate(3, 4, 5, PackCell('界', 2)),
				RowUpdate(9, 6, packString("hi")),
				SegmentUpdate(9, 1, 7, packString("x")),
				RectUpdate(10, 12, 0, 4, 8, PackedBlank),
				TrimUpdate(0, 3),
				StyleUpdate(2, Style{FG: IndexedColor(4), BG: RGBColor(1, 2, 3), Attrs: AttrBold | AttrUnderline}),
			},
			Cursor: cursor,
		}},
		{"delta without cursor", DeltaFrame{
			Updates: []Update{CellUpdate(0, 0, 1, PackCell('a', 0))},
		}},
		{"backfill with more", HistoryBackfillFrame{
			SubscriptionID: 42,
			RequestID:      3,
			StartRow:       100,
			Count:          40,
			More:           true,
			Updates:        []Update{RowUpdate(100, 1, packString("old"))},
			Cursor:         cursor,
		}},
		{"cursor", *cursor},
		{"input ack", InputAckFrame{Seq: 17}},
		{"heartbeat", HeartbeatFrame{}},
		{"shutdown", ShutdownFrame{Reason: "host going away"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := EncodeHostFrame(tt.frame)
			if got := binary.BigEndian.Uint32(wire[2:6]); int(got) != len(wire)-frameHeaderSize {
				t.Fatalf("length field = %d, want %d", got, len(wire)-frameHeaderSize)
			}
			decoded, err := DecodeHostFrame(wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.frame) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, tt.frame)
			}
		})
	}
}

func TestClientFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame ClientFrame
	}{
		{"input", InputFrame{Seq: 5, Data: []byte("ls -la\r")}},
		{"request backfill", RequestBackfillFrame{SubscriptionID: 42, RequestID: 7, StartRow: 256, Count: 256}},
		{"resize", ResizeFrame{Cols: 132, Rows: 43}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := EncodeClientFrame(tt.frame)
			decoded, err := DecodeClientFrame(wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.frame) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", decoded, tt.frame)
			}
		})
	}
}

func TestDecodeHostFrameErrors(t *testing.T) {
	t.Run("short header", func(t *testing.T) {
		if _, err := DecodeHostFrame([]byte{frameHello, 0, 0}); !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("err = %v, want ErrFrameTooShort", err)
		}
	})

	t.Run("length beyond buffer", func(t *testing.T) {
		wire := []byte{frameHello, 0, 0, 0, 0, 12, 1, 2}
		if _, err := DecodeHostFrame(wire); !errors.Is(err, ErrPayloadTruncated) {
			t.Errorf("err = %v, want ErrPayloadTruncated", err)
		}
	})

	t.Run("truncated payload fields", func(t *testing.T) {
		// Header is self-consistent but the hello payload is too short.
		wire := []byte{frameHello, 0, 0, 0, 0, 4, 0, 0, 0, 42}
		if _, err := DecodeHostFrame(wire); !errors.Is(err, ErrPayloadTruncated) {
			t.Errorf("err = %v, want ErrPayloadTruncated", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		wire := []byte{0x7f, 0, 0, 0, 0, 0}
		if _, err := DecodeHostFrame(wire); !errors.Is(err, ErrUnknownFrame) {
			t.Errorf("err = %v, want ErrUnknownFrame", err)
		}
	})

	t.Run("unknown update kind", func(t *testing.T) {
		wire := EncodeHostFrame(DeltaFrame{Updates: []Update{CellUpdate(0, 0, 1, PackedBlank)}})
		wire[frameHeaderSize+4] = 0xee // corrupt the first update's kind tag
		if _, err := DecodeHostFrame(wire); !errors.Is(err, ErrUnknownUpdate) {
			t.Errorf("err = %v, want ErrUnknownUpdate", err)
		}
	})
}

func TestDecodeClientFrameErrors(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		wire := []byte{0x7f, 0, 0, 0, 0, 0}
		if _, err := DecodeClientFrame(wire); !errors.Is(err, ErrUnknownFrame) {
			t.Errorf("err = %v, want ErrUnknownFrame", err)
		}
	})

	t.Run("truncated request", func(t *testing.T) {
		wire := EncodeClientFrame(RequestBackfillFrame{SubscriptionID: 1, RequestID: 2, StartRow: 3, Count: 4})
		wire = wire[:len(wire)-2]
		binary.BigEndian.PutUint32(wire[2:6], uint32(len(wire)-frameHeaderSize))
		if _, err := DecodeClientFrame(wire); !errors.Is(err, ErrPayloadTruncated) {
			t.Errorf("err = %v, want ErrPayloadTruncated", err)
		}
	})
}

func TestInputFrameDataDoesNotAliasWire(t *testing.T) {
	wire := EncodeClientFrame(InputFrame{Seq: 1, Data: []byte("abc")})
	decoded, err := DecodeClientFrame(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	wire[len(wire)-1] = 'z'
	if got := string(decoded.(InputFrame).Data); got != "abc" {
		t.Errorf("decoded data = %q, want \"abc\"", got)
	}
}
