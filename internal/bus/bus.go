// Package bus wires the CPU-visible 16-bit address space to the cartridge,
// WRAM, HRAM, and the PPU/timer/serial/joypad/DMA/interrupt peripherals. It
// is a pure address decoder: the M-cycle/T-cycle tick ordering that drives
// those peripherals lives in internal/machine, which owns this Bus.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/apu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/dma"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/interrupts"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/serial"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/timer"
)

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = joypad.Right
	JoypLeft      = joypad.Left
	JoypUp        = joypad.Up
	JoypDown      = joypad.Down
	JoypA         = joypad.A
	JoypB         = joypad.B
	JoypSelectBtn = joypad.Select
	JoypStart     = joypad.Start
)

// Bus owns every memory-mapped peripheral and decodes CPU reads/writes to
// the right one.
type Bus struct {
	cart cart.Cartridge

	wram [0x2000]byte // 0xC000-0xDFFF, echoed at 0xE000-0xFDFF
	hram [0x7F]byte   // 0xFF80-0xFFFE

	PPUUnit    *ppu.PPU
	TimerUnit  *timer.Timer
	SerialUnit *serial.Serial
	JoypUnit   *joypad.Joypad
	DMAUnit    *dma.DMA
	APUUnit    *apu.APU
	IRQ        *interrupts.Controller

	bootROM     []byte
	bootEnabled bool

	mPhase int // 0..3: position within the current M-cycle, for Tick's T/M split
}

// New constructs a Bus around the cartridge cart.NewCartridge picks from
// rom's header (ROM-only when the header is missing or its type unknown).
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, IRQ: &interrupts.Controller{}}
	b.PPUUnit = ppu.New(func(bit int) { b.IRQ.Request(bit) })
	b.TimerUnit = timer.New(func() { b.IRQ.Request(interrupts.Timer) })
	b.SerialUnit = serial.New(func() { b.IRQ.Request(interrupts.Serial) })
	b.JoypUnit = joypad.New(func() { b.IRQ.Request(interrupts.Joypad) })
	b.DMAUnit = dma.New()
	b.APUUnit = apu.New(48000)
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.PPUUnit }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// APU returns the internal APU register store.
func (b *Bus) APU() *apu.APU { return b.APUUnit }

func isAPUAddr(addr uint16) bool {
	return (addr >= 0xFF10 && addr <= 0xFF26) || (addr >= 0xFF30 && addr <= 0xFF3F)
}

// rawRead reads memory the way the DMA engine and the OAM-conflict logic
// need to: it never reflects the OAM-blocking the CPU sees on direct access,
// since the DMA engine itself supplies the bytes landing in OAM.
func (b *Bus) rawRead(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.PPUUnit.DebugRead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	default:
		return 0xFF
	}
}

func (b *Bus) Read(addr uint16) byte {
	if b.DMAUnit.IsConflict(addr) {
		return b.DMAUnit.CurrentByte()
	}
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.PPUUnit.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[(addr-0x2000)-0xC000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.DMAUnit.Running() {
			return 0xFF
		}
		return b.PPUUnit.CPURead(addr)
	case addr == 0xFF00:
		return b.JoypUnit.Read(addr)
	case addr == 0xFF01, addr == 0xFF02:
		return b.SerialUnit.Read(addr)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		return b.TimerUnit.Read(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.PPUUnit.CPURead(addr)
	case addr == 0xFF46:
		return b.DMAUnit.Source()
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return b.IRQ.ReadIF()
	case addr == 0xFFFF:
		return b.IRQ.ReadIE()
	case isAPUAddr(addr):
		return b.APUUnit.CPURead(addr)
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	if b.DMAUnit.IsConflict(addr) {
		return
	}
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.PPUUnit.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.DMAUnit.Running() {
			return
		}
		b.PPUUnit.CPUWrite(addr, value)
	case addr == 0xFF00:
		b.JoypUnit.Write(addr, value)
	case addr == 0xFF01, addr == 0xFF02:
		b.SerialUnit.Write(addr, value)
	case addr == 0xFF04, addr == 0xFF05, addr == 0xFF06, addr == 0xFF07:
		b.TimerUnit.Write(addr, value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.PPUUnit.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.DMAUnit.Trigger(value)
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr == 0xFF0F:
		b.IRQ.WriteIF(value)
	case addr == 0xFFFF:
		b.IRQ.WriteIE(value)
	case isAPUAddr(addr):
		b.APUUnit.CPUWrite(addr, value)
	}
}

// SetJoypadState sets which buttons are currently pressed, using the Joyp*
// mask constants above.
func (b *Bus) SetJoypadState(mask byte) {
	for _, bit := range []byte{JoypRight, JoypLeft, JoypUp, JoypDown, JoypA, JoypB, JoypSelectBtn, JoypStart} {
		b.JoypUnit.Set(bit, mask&bit != 0)
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.SerialUnit.SetSink(w) }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until the game
// disables it via a write to 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// TickDMA advances the OAM DMA engine by one M-cycle. It is split out from
// TickPhase0 so a CPU-driving caller (internal/machine) can run it before
// the CPU's own Tick: DMA's bus conflict state for the cycle must already
// be current by the time the CPU reads or writes memory.
func (b *Bus) TickDMA() {
	b.DMAUnit.Tick(b.rawRead, b.PPUUnit.DMAWriteOAM)
}

// TickPeripherals runs the rest of the once-per-M-cycle phase-0 fan-out,
// after DMA and the CPU have both run: PPU and Timer advance one T-cycle,
// Serial does its once-per-M-cycle work, and APU advances 4 T-cycles.
func (b *Bus) TickPeripherals() {
	b.PPUUnit.Tick(1)
	b.SerialUnit.Tick()
	b.TimerUnit.Tick()
	b.APUUnit.Tick(4)
}

// TickPhase0 runs the complete phase-0 fan-out (DMA, then the rest) with no
// CPU in between, for standalone bus-level driving (Tick) that has no CPU
// to interleave.
func (b *Bus) TickPhase0() {
	b.TickDMA()
	b.TickPeripherals()
}

// TickRest runs the T-cycle-only fan-out for phases 1-3 of an M-cycle.
func (b *Bus) TickRest() {
	b.PPUUnit.Tick(1)
	b.TimerUnit.Tick()
}

// Tick advances cycles T-cycles, for standalone bus-level testing and
// tools that don't drive a CPU. It reproduces the phase-0/phase-1-3 split
// a CPU-driven Machine uses, with mPhase tracking position in the M-cycle.
func (b *Bus) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if b.mPhase == 0 {
			b.TickPhase0()
		} else {
			b.TickRest()
		}
		b.mPhase = (b.mPhase + 1) % 4
	}
}

// --- Save/Load state ---

type busState struct {
	WRAM        [0x2000]byte
	HRAM        [0x7F]byte
	IE, IF      byte
	BootEn      bool
	PPU, Timer  []byte
	Serial, DMA []byte
	Joypad      []byte
	APU         []byte
	Cart        []byte
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		IE: b.IRQ.ReadIE(), IF: b.IRQ.ReadIF(),
		BootEn: b.bootEnabled,
		PPU:    b.PPUUnit.SaveState(),
	}
	_ = enc.Encode(s)

	tState := b.TimerUnit.SaveState()
	_ = enc.Encode(tState)
	sState := b.SerialUnit.SaveState()
	_ = enc.Encode(sState)
	dState := b.DMAUnit.SaveState()
	_ = enc.Encode(dState)
	jState := b.JoypUnit.SaveState()
	_ = enc.Encode(jState)
	aState := b.APUUnit.SaveState()
	_ = enc.Encode(aState)

	if bb, ok := b.cart.(interface{ SaveState() []byte }); ok {
		cs := bb.SaveState()
		_ = enc.Encode(cs)
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram = s.WRAM
	b.hram = s.HRAM
	b.IRQ.WriteIE(s.IE)
	b.IRQ.WriteIF(s.IF)
	b.bootEnabled = s.BootEn
	b.PPUUnit.LoadState(s.PPU)

	var tState timer.State
	if err := dec.Decode(&tState); err == nil {
		b.TimerUnit.LoadState(tState)
	}
	var sState serial.State
	if err := dec.Decode(&sState); err == nil {
		b.SerialUnit.LoadState(sState)
	}
	var dState dma.State
	if err := dec.Decode(&dState); err == nil {
		b.DMAUnit.LoadState(dState)
	}
	var jState joypad.State
	if err := dec.Decode(&jState); err == nil {
		b.JoypUnit.LoadState(jState)
	}
	var aState []byte
	if err := dec.Decode(&aState); err == nil {
		b.APUUnit.LoadState(aState)
	}

	var cs []byte
	if err := dec.Decode(&cs); err == nil {
		if bb, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			bb.LoadState(cs)
		}
	}
}
