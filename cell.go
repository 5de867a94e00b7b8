package termsync

import "unicode/utf8"

// PackedCell is the wire representation of a single terminal cell: the
// Unicode codepoint in the upper 32 bits and the style identifier in the
// lower 32 bits.
//
// Hosts predating the style table sent a bare codepoint in the low bits.
// Unpack keeps accepting that shape: a nonzero value that fits entirely in
// the low 32 bits decodes as the codepoint itself with the default style.
type PackedCell uint64

// StyleID identifies an entry in a session's style table. ID 0 is always
// the default style.
type StyleID uint32

// PackCell combines a codepoint and style into the packed wire value.
func PackCell(ch rune, style StyleID) PackedCell {
	return PackedCell(uint64(uint32(ch))<<32 | uint64(style))
}

// PackedBlank is a space in the default style.
const PackedBlank = PackedCell(uint64(' ') << 32)

// Unpack splits a packed cell into its codepoint and style. An invalid
// codepoint decodes as U+FFFD so a corrupt cell can never poison a row.
func (p PackedCell) Unpack() (rune, StyleID) {
	code := uint32(p >> 32)
	style := StyleID(p)
	if code == 0 && style != 0 {
		// Legacy bare-codepoint encoding.
		code = uint32(style)
		style = 0
	}
	ch := rune(code)
	if !utf8.ValidRune(ch) {
		ch = utf8.RuneError
	}
	return ch, style
}

// Rune returns just the codepoint of the packed cell.
func (p PackedCell) Rune() rune {
	ch, _ := p.Unpack()
	return ch
}

// Style returns just the style identifier of the packed cell.
func (p PackedCell) Style() StyleID {
	_, style := p.Unpack()
	return style
}

// IsBlank reports whether the cell renders as empty space.
func (p PackedCell) IsBlank() bool {
	ch, _ := p.Unpack()
	return ch == ' ' || ch == 0
}

// ColorKind discriminates the encoding of a PackedColor.
type ColorKind uint8

const (
	ColorDefault ColorKind = 0
	ColorIndexed ColorKind = 1
	ColorRGB     ColorKind = 2
)

// PackedColor is a 32-bit color: the kind in bits 24-31 and the payload in
// the low 24 bits (palette index or 8-bit RGB components).
type PackedColor uint32

// DefaultColor is the terminal's default foreground or background.
func DefaultColor() PackedColor { return 0 }

// IndexedColor references one of the 256 palette entries.
func IndexedColor(idx uint8) PackedColor {
	return PackedColor(uint32(ColorIndexed)<<24 | uint32(idx))
}

// RGBColor is a 24-bit truecolor value.
func RGBColor(r, g, b uint8) PackedColor {
	return PackedColor(uint32(ColorRGB)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Kind returns the color's encoding. Unknown kinds decode as default so
// newer hosts degrade gracefully.
func (c PackedColor) Kind() ColorKind {
	k := ColorKind(c >> 24)
	if k > ColorRGB {
		return ColorDefault
	}
	return k
}

// Index returns the palette index for indexed colors.
func (c PackedColor) Index() uint8 { return uint8(c) }

// RGB returns the truecolor components for RGB colors.
func (c PackedColor) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// StyleAttrs is a bitset of text attributes.
type StyleAttrs uint8

const (
	AttrBold StyleAttrs = 1 << iota
	AttrItalic
	AttrUnderline
	AttrStrikethrough
	AttrReverse
	AttrBlink
	AttrDim
	AttrHidden
)

// Has reports whether all attributes in mask are set.
func (a StyleAttrs) Has(mask StyleAttrs) bool { return a&mask == mask }

// Style is one entry in the session style table.
type Style struct {
	FG    PackedColor
	BG    PackedColor
	Attrs StyleAttrs
}

// DefaultStyle is the style bound to ID 0.
var DefaultStyle = Style{}
