package ppu

import "sort"

// Sprite is one OAM_SEARCH-admitted entry, already resolved to screen-space
// X (OAM X minus 8) and to the single 8-row tile/attr pair that covers the
// current scanline (the 8x16 top/bottom split and its own Y-flip are
// resolved by the caller before this struct is built; Attr's Y-flip bit
// reflects only the within-tile-row flip still to be applied).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

const (
	attrPriority = 1 << 7
	attrYFlip    = 1 << 6
	attrXFlip    = 1 << 5
	attrPalette  = 1 << 4 // 0: OBP0, 1: OBP1
)

// orderForCompose returns sprites ordered so that the highest-priority
// sprite (smallest X, then lowest OAM index) is composited LAST and so
// survives where sprites overlap, per spec.md §4.3's tie-break rule.
func orderForCompose(sprites []Sprite) []Sprite {
	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].X != ordered[j].X {
			return ordered[i].X > ordered[j].X
		}
		return ordered[i].OAMIndex > ordered[j].OAMIndex
	})
	return ordered
}

// spritePixel resolves one sprite's contribution to column x of row ly:
// color index 0-3 (0 = transparent) and which OBP register it selects.
func spritePixel(mem VRAMReader, s Sprite, x int, ly byte) (ci byte, palette byte, ok bool) {
	row := int(ly) - s.Y
	if row < 0 || row >= 8 {
		return 0, 0, false
	}
	if s.Attr&attrYFlip != 0 {
		row = 7 - row
	}
	col := x - s.X
	if col < 0 || col >= 8 {
		return 0, 0, false
	}
	bit := 7 - col
	if s.Attr&attrXFlip != 0 {
		bit = col
	}
	addr := uint16(0x8000) + uint16(s.Tile)*16 + uint16(row)*2
	lo := mem.Read(addr)
	hi := mem.Read(addr + 1)
	ci = ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
	if ci == 0 {
		return 0, 0, false
	}
	pal := byte(0)
	if s.Attr&attrPalette != 0 {
		pal = 1
	}
	return ci, pal, true
}

// ComposeSpriteLine renders the sprite layer's color indices for scanline
// ly, honoring BG-priority (sprites behind a non-zero BG pixel are hidden)
// and the X/OAM-index tie-break. useCGB is accepted for interface symmetry
// with a CGB-aware renderer but is unused: color-console sprite priority
// (OAM-order-only, no X comparison) is explicitly out of scope.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, useCGB bool) [160]byte {
	var out [160]byte
	for _, s := range orderForCompose(sprites) {
		for x := s.X; x < s.X+8; x++ {
			if x < 0 || x >= 160 {
				continue
			}
			ci, _, ok := spritePixel(mem, s, x, ly)
			if !ok {
				continue
			}
			if s.Attr&attrPriority != 0 && bgci[x] != 0 {
				continue
			}
			out[x] = ci
		}
	}
	return out
}

// composeSpriteLineDetailed is the same priority/occlusion logic as
// ComposeSpriteLine but additionally tracks which OBP register each
// surviving pixel selects, for the real framebuffer render path in scanline
// rendering.
func composeSpriteLineDetailed(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte) (ci [160]byte, palette [160]byte, opaque [160]bool) {
	for _, s := range orderForCompose(sprites) {
		for x := s.X; x < s.X+8; x++ {
			if x < 0 || x >= 160 {
				continue
			}
			c, p, ok := spritePixel(mem, s, x, ly)
			if !ok {
				continue
			}
			if s.Attr&attrPriority != 0 && bgci[x] != 0 {
				continue
			}
			ci[x], palette[x], opaque[x] = c, p, true
		}
	}
	return
}
