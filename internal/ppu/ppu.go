// Package ppu implements the pixel processing unit: the dot-accurate
// OAM_SEARCH/DRAW/HBLANK/VBLANK mode FSM, the STAT combinational IRQ line,
// sprite/window/background compositing, and the RGBA framebuffer the host
// reads at frame-publish time.
package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT).
type InterruptRequester func(bit int)

// Mode values, matching STAT bits 1-0 and spec.md's §3 enumeration.
const (
	ModeHBlank byte = 0
	ModeVBlank byte = 1
	ModeOAM    byte = 2
	ModeDraw   byte = 3
)

const (
	dotsPerLine  = 456
	oamSearchLen = 80
	baseDrawLen  = 172
	lastVisibleY = 143
	lastLineY    = 153

	// lastLineEarlyWrapDot is the dot within scanline 153 at which LY reads
	// back as 0 for the remainder of the line (the "LY=153 quirk"): real
	// hardware only holds LY at 153 for one M-cycle.
	lastLineEarlyWrapDot = 4
)

// LineRegs is a per-scanline snapshot of state a test or debugger may want
// to inspect after the fact, separate from the live registers that keep
// changing as subsequent lines render.
type LineRegs struct {
	WinLine byte
}

// PPU owns VRAM/OAM, the LCDC/STAT/scroll/palette registers, the dot
// counter, and the composited framebuffer.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte
	stat byte // bits 1-0 mode, bit2 LYC flag, bits 6-3 IRQ enables
	scy  byte
	scx  byte
	ly   byte
	lyc  byte
	bgp  byte
	obp0 byte
	obp1 byte
	wy   byte
	wx   byte

	dot     int
	drawLen int // this scanline's DRAW length, fixed at the OAM_SEARCH->DRAW transition

	winLineCounter    byte
	windowActiveLine  bool // whether the window rendered on the in-flight scanline
	winLineForThisRow byte

	statLineAsserted bool // previous value of the combined STAT IRQ line, for edge detection
	onLastLine       bool // physically on scanline 153, even once LY has early-wrapped to 0

	sprites   []Sprite
	lineRegs  [144]LineRegs
	fb        [160 * 144 * 4]byte // composited RGBA framebuffer, valid after VBlank entry

	req InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

func (p *PPU) request(bit int) {
	if p.req != nil {
		p.req(bit)
	}
}

// --- CPU-facing memory-mapped access ---

func (p *PPU) mode() byte { return p.stat & 0x03 }

func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == ModeOAM || m == ModeDraw {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// Read implements VRAMReader so the PPU itself can feed the fetcher/scanline
// helpers during rendering, bypassing CPU-access gating (the PPU always has
// access to its own memory).
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if m := p.mode(); m == ModeOAM || m == ModeDraw {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		p.writeLCDC(value)
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.recomputeStatLine(false)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		// LY is read-only; writes are ignored (spec.md §6).
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC(false)
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

func (p *PPU) writeLCDC(value byte) {
	prev := p.lcdc
	p.lcdc = value
	wasOn := prev&0x80 != 0
	isOn := value&0x80 != 0
	if wasOn && !isOn {
		p.ly = 0
		p.dot = 0
		p.onLastLine = false
		p.stat = p.stat &^ 0x03 // mode 0
		p.sprites = nil
		p.updateLYC(false)
		p.recomputeStatLine(false)
	} else if !wasOn && isOn {
		p.ly = 0
		p.dot = 0
		p.onLastLine = false
		p.winLineCounter = 0
		p.enterMode(ModeOAM, false)
		p.beginLine()
	}
}

// DMAWriteOAM deposits a byte transferred by the OAM DMA engine directly,
// bypassing the CPU-access mode gating (the DMA engine is not the CPU).
func (p *PPU) DMAWriteOAM(offset int, value byte) {
	if offset >= 0 && offset < len(p.oam) {
		p.oam[offset] = value
	}
}

// DebugRead/DebugWrite bypass all CPU-access gating, for the external debug
// interface (spec.md §6's debug_read_u8/debug_write_u8/dump_memory).
func (p *PPU) DebugRead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		return p.oam[addr-0xFE00]
	default:
		return p.CPURead(addr)
	}
}

func (p *PPU) DebugWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		p.oam[addr-0xFE00] = value
	default:
		p.CPUWrite(addr, value)
	}
}

// --- Tick / mode FSM ---

// Tick advances the PPU by cycles dots (T-cycles). It returns true on the
// dot the PPU wraps from scanline 153 back to scanline 0, signaling a
// completed frame to the driver.
func (p *PPU) Tick(cycles int) bool {
	redraw := false
	for i := 0; i < cycles; i++ {
		if p.tick1() {
			redraw = true
		}
	}
	return redraw
}

func (p *PPU) tick1() bool {
	if p.lcdc&0x80 == 0 {
		return false
	}
	p.dot++

	if p.ly < 144 && !p.onLastLine {
		switch {
		case p.dot == oamSearchLen:
			p.beginDraw()
		case p.dot == oamSearchLen+p.drawLen:
			p.enterMode(ModeHBlank, false)
		}
	}

	if p.onLastLine && p.dot == lastLineEarlyWrapDot {
		p.ly = 0
		p.updateLYC(false)
	}

	if p.dot >= dotsPerLine {
		p.dot = 0
		return p.advanceLine()
	}
	return false
}

// beginLine is called at dot 0 of every visible scanline: it starts a fresh
// OAM_SEARCH, which this implementation resolves in one step rather than
// spreading the 40-entry scan across its 80 dots.
func (p *PPU) beginLine() {
	if p.ly < 144 {
		p.sprites = p.scanOAMForLine(p.ly)
	}
}

func (p *PPU) beginDraw() {
	p.windowActiveLine = p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 &&
		p.wy <= p.ly && p.wx <= 166
	if p.windowActiveLine {
		p.winLineForThisRow = p.winLineCounter
		p.winLineCounter++
	} else {
		p.winLineForThisRow = 0
	}
	p.lineRegs[p.ly] = LineRegs{WinLine: boolWinLine(p.windowActiveLine, p.winLineForThisRow)}

	fineScroll := int(p.scx & 0x07)
	windowPenalty := 0
	if p.windowActiveLine {
		windowPenalty = 6
	}
	spritePenalty := len(p.sprites) * 6
	p.drawLen = baseDrawLen + fineScroll + windowPenalty + spritePenalty

	p.enterMode(ModeDraw, false)
	p.renderScanline()
}

func boolWinLine(active bool, v byte) byte {
	if active {
		return v
	}
	return 0
}

// advanceLine runs the end-of-scanline bookkeeping: LY increment/wrap, mode
// transition into OAM_SEARCH or VBLANK, and the VBlank-entry STAT quirk.
func (p *PPU) advanceLine() bool {
	wrapped := false
	if p.onLastLine {
		p.ly = 0
		p.winLineCounter = 0
		p.onLastLine = false
		wrapped = true
	} else if p.ly == lastLineY-1 {
		p.ly++
		p.onLastLine = true
	} else {
		p.ly++
	}
	p.updateLYC(p.ly == 144)

	switch {
	case p.ly == 144:
		p.enterMode(ModeVBlank, true)
		p.request(0) // VBlank IF
	case p.ly < 144:
		p.enterMode(ModeOAM, false)
		p.beginLine()
	}
	return wrapped
}

func (p *PPU) enterMode(mode byte, vblankQuirk bool) {
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	p.recomputeStatLine(vblankQuirk)
}

func (p *PPU) updateLYC(vblankQuirk bool) {
	prevMatch := p.stat&(1<<2) != 0
	match := p.ly == p.lyc
	if match {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	if match != prevMatch {
		p.recomputeStatLine(vblankQuirk)
	}
}

// recomputeStatLine re-evaluates the combined STAT IRQ line (mode-0/1/2
// enables OR'd with the LYC-match condition) and requests LCD_STAT on its
// rising edge only. vblankQuirk reproduces the documented hardware bug where
// entering VBLANK also briefly satisfies the mode-2 (OAM) enable.
func (p *PPU) recomputeStatLine(vblankQuirk bool) {
	m := p.mode()
	line := (p.stat&(1<<3) != 0 && m == ModeHBlank) ||
		(p.stat&(1<<4) != 0 && m == ModeVBlank) ||
		(p.stat&(1<<5) != 0 && m == ModeOAM) ||
		(p.stat&(1<<6) != 0 && p.stat&(1<<2) != 0)
	if vblankQuirk && p.stat&(1<<5) != 0 {
		line = true
	}
	if line && !p.statLineAsserted {
		p.request(1)
	}
	p.statLineAsserted = line
}

// --- Rendering ---

func (p *PPU) renderScanline() {
	ly := p.ly
	var bgci [160]byte
	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(p, mapBase, tileData8000, p.scx, p.scy, ly)

		if p.windowActiveLine {
			winMapBase := uint16(0x9800)
			if p.lcdc&0x40 != 0 {
				winMapBase = 0x9C00
			}
			winStart := int(p.wx) - 7
			winOut := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, winStart, p.winLineForThisRow)
			start := winStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				bgci[x] = winOut[x]
			}
		}
	}

	var sci, spal [160]byte
	var sop [160]bool
	if p.lcdc&0x02 != 0 {
		sci, spal, sop = composeSpriteLineDetailed(p, p.sprites, ly, bgci)
	}

	rowOff := int(ly) * 160 * 4
	for x := 0; x < 160; x++ {
		var shade byte
		if sop[x] {
			pal := p.obp0
			if spal[x] == 1 {
				pal = p.obp1
			}
			shade = paletteShade(pal, sci[x])
		} else {
			shade = paletteShade(p.bgp, bgci[x])
		}
		off := rowOff + x*4
		p.fb[off+0] = shade
		p.fb[off+1] = shade
		p.fb[off+2] = shade
		p.fb[off+3] = 0xFF
	}
}

// paletteShade looks up color index ci (0-3) in the 2-bit-per-entry palette
// byte and converts it to the classic DMG four-shade greyscale ramp.
func paletteShade(palette, ci byte) byte {
	shadeID := (palette >> (ci * 2)) & 0x03
	switch shadeID {
	case 0:
		return 0xFF
	case 1:
		return 0xAA
	case 2:
		return 0x55
	default:
		return 0x00
	}
}

// scanOAMForLine admits up to 10 OAM entries overlapping ly, in OAM order,
// resolving 8x16 sprites to the single 8-row tile/row that covers ly.
func (p *PPU) scanOAMForLine(ly byte) []Sprite {
	height := 8
	if p.lcdc&0x04 != 0 {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		rawY := p.oam[base+0]
		rawX := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]

		screenY := int(rawY) - 16
		screenX := int(rawX) - 8
		if rawX == 0 {
			continue
		}
		row := int(ly) - screenY
		if row < 0 || row >= height {
			continue
		}

		s := Sprite{X: screenX, Tile: tile, Attr: attr, OAMIndex: i}
		if height == 16 {
			displayRow := row
			if attr&attrYFlip != 0 {
				displayRow = height - 1 - row
			}
			if displayRow < 8 {
				s.Tile = tile &^ 1
			} else {
				s.Tile = tile | 1
				displayRow -= 8
			}
			s.Attr = attr &^ attrYFlip
			s.Y = int(ly) - displayRow
		} else {
			s.Y = screenY
		}
		out = append(out, s)
	}
	return out
}

// Framebuffer returns the composited 160x144 RGBA buffer. It is valid as of
// the most recent scanline rendered; the host should read it once per frame
// on the redraw signal from Tick.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// LineRegs returns the register snapshot captured when scanline y entered
// DRAW, for debugging and tests.
func (p *PPU) LineRegs(y int) LineRegs {
	if y < 0 || y >= len(p.lineRegs) {
		return LineRegs{}
	}
	return p.lineRegs[y]
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
func (p *PPU) LY() byte   { return p.ly }

// --- Save/Load state ---

type State struct {
	VRAM              [0x2000]byte
	OAM               [0xA0]byte
	LCDC, STAT        byte
	SCY, SCX          byte
	LY, LYC           byte
	BGP, OBP0, OBP1   byte
	WY, WX            byte
	Dot, DrawLen      int
	WinLineCounter    byte
	StatLineAsserted  bool
	OnLastLine        bool
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := State{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, Dot: p.dot, DrawLen: p.drawLen,
		WinLineCounter: p.winLineCounter, StatLineAsserted: p.statLineAsserted,
		OnLastLine: p.onLastLine,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.STAT, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx, p.dot, p.drawLen = s.WY, s.WX, s.Dot, s.DrawLen
	p.winLineCounter, p.statLineAsserted = s.WinLineCounter, s.StatLineAsserted
	p.onLastLine = s.OnLastLine
}
