// Package machine drives the CPU and Bus together: it owns the per-M-cycle
// tick loop that fans out DMA, CPU, PPU, serial, timer, and APU advancement
// in the order real hardware resolves them, and exposes the host-facing API
// (ebiten UI, headless CLI tools) to load cartridges, pump frames, and
// save/restore state.
package machine

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
)

// cyclesPerFrame is the T-cycle length of one DMG frame: 154 scanlines of
// 456 dots each.
const cyclesPerFrame = 154 * 456

// Buttons mirrors the eight physical joypad inputs.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine owns a CPU and the Bus it drives, plus the bits of host state
// (loaded ROM path/title, boot ROM bytes) that survive a cartridge reload.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath  string
	romTitle string
	bootROM  []byte
}

// New constructs a Machine with no cartridge loaded; LoadCartridge or
// LoadROMFromFile must be called before stepping it meaningfully.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg}
	m.bus = bus.New(nil)
	m.cpu = cpu.New(m.bus, m.bus.IRQ)
	m.ResetPostBoot()
	return m
}

// SetBootROM stashes a boot ROM image to be mapped in on the next
// LoadCartridge/ResetWithBoot.
func (m *Machine) SetBootROM(data []byte) {
	if len(data) == 0 {
		m.bootROM = nil
		return
	}
	m.bootROM = append([]byte(nil), data...)
}

// LoadCartridge swaps in a new cartridge image, rebuilding the Bus and CPU
// around it. If boot is non-nil it's also installed as the boot ROM and the
// machine resets into it at PC 0; otherwise it resets straight to the
// DMG post-boot register state at PC 0x0100.
func (m *Machine) LoadCartridge(rom, boot []byte) error {
	c, err := cart.NewCartridgeStrict(rom)
	if err != nil {
		c = cart.NewCartridge(rom)
	}
	m.bus = bus.NewWithCartridge(c)
	m.cpu = cpu.New(m.bus, m.bus.IRQ)

	if h, herr := cart.ParseHeader(rom); herr == nil {
		m.romTitle = h.Title
	} else {
		m.romTitle = ""
	}

	if len(boot) > 0 {
		m.SetBootROM(boot)
	}
	if len(m.bootROM) > 0 {
		m.ResetWithBoot()
	} else {
		m.ResetPostBoot()
	}
	return err
}

// LoadROMFromFile reads a ROM image from disk and loads it, keeping whatever
// boot ROM is already installed.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFromFile last loaded, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title of the currently loaded ROM.
func (m *Machine) ROMTitle() string { return m.romTitle }

// LoadBattery restores external cartridge RAM from a save file, if the
// current cartridge is battery-backed. Returns false if it isn't.
func (m *Machine) LoadBattery(data []byte) bool {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SaveBattery returns a copy of external cartridge RAM, if the current
// cartridge is battery-backed.
func (m *Machine) SaveBattery() ([]byte, bool) {
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// tickM advances exactly one M-cycle (4 T-cycles). Phase 0 fans out in the
// order real hardware resolves it: DMA first, so the CPU's own read/write
// this cycle already sees DMA's bus-conflict state, then the CPU, then the
// rest of the once-per-M-cycle peripherals (PPU/Serial/Timer/APU).
func (m *Machine) tickM() {
	m.bus.TickDMA()
	m.cpu.Tick()
	m.bus.TickPeripherals()
	m.bus.TickRest()
	m.bus.TickRest()
	m.bus.TickRest()
}

// StepFrame runs the machine for one DMG frame's worth of T-cycles (70224,
// i.e. 17556 M-cycles) and updates the framebuffer.
func (m *Machine) StepFrame() {
	for i := 0; i < cyclesPerFrame/4; i++ {
		m.tickM()
	}
}

// StepFrameNoRender is identical to StepFrame: the PPU always renders each
// scanline as part of ticking, so there's no separate cheaper path to skip
// to. The distinct name lets hosts that don't need to display every frame
// (headless test runners, fast-forward) express that intent.
func (m *Machine) StepFrameNoRender() {
	m.StepFrame()
}

// Framebuffer returns the PPU's current RGBA framebuffer, valid until the
// next StepFrame call.
func (m *Machine) Framebuffer() []byte { return m.bus.PPUUnit.Framebuffer() }

// SetButtons updates the joypad state read by games.
func (m *Machine) SetButtons(b Buttons) { m.bus.SetJoypadState(b.mask()) }

// SetSerialWriter attaches a sink for bytes the game writes out the serial
// port (used by link-cable test ROMs to report pass/fail).
func (m *Machine) SetSerialWriter(w io.Writer) { m.bus.SetSerialWriter(w) }

// SetUseFetcherBG is retained for API/config compatibility; the PPU always
// renders via its fetcher pipeline, so this is a no-op.
func (m *Machine) SetUseFetcherBG(bool) {}

// APUBufferedStereo reports how many stereo sample pairs are ready to pull.
// This core implements sound registers only, never PCM synthesis, so it's
// always 0.
func (m *Machine) APUBufferedStereo() int { return m.bus.APUUnit.StereoAvailable() }

// APUPullStereo pulls up to max buffered stereo sample pairs. Always empty;
// see APUBufferedStereo.
func (m *Machine) APUPullStereo(max int) []int16 { return m.bus.APUUnit.PullStereo(max) }

// APUCapBufferedStereo is a no-op: there's no sample buffer to cap.
func (m *Machine) APUCapBufferedStereo(n int) {}

// APUClearAudioLatency is a no-op: there's no sample buffer to drain.
func (m *Machine) APUClearAudioLatency() {}

// ResetPostBoot resets CPU and peripherals straight to the DMG's documented
// post-boot-ROM state, skipping boot ROM execution entirely.
func (m *Machine) ResetPostBoot() {
	m.bus.SetBootROM(nil)
	m.cpu = cpu.New(m.bus, m.bus.IRQ)
	m.cpu.Regs.A, m.cpu.Regs.F = 0x01, 0xB0
	m.cpu.Regs.B, m.cpu.Regs.C = 0x00, 0x13
	m.cpu.Regs.D, m.cpu.Regs.E = 0x00, 0xD8
	m.cpu.Regs.H, m.cpu.Regs.L = 0x01, 0x4D
	m.cpu.Regs.SP = 0xFFFE
	m.cpu.Regs.PC = 0x0100

	for _, rw := range []struct {
		addr uint16
		val  byte
	}{
		{0xFF05, 0x00}, {0xFF06, 0x00}, {0xFF07, 0x00},
		{0xFF10, 0x80}, {0xFF11, 0xBF}, {0xFF12, 0xF3}, {0xFF14, 0xBF},
		{0xFF16, 0x3F}, {0xFF17, 0x00}, {0xFF19, 0xBF},
		{0xFF1A, 0x7F}, {0xFF1B, 0xFF}, {0xFF1C, 0x9F}, {0xFF1E, 0xBF},
		{0xFF20, 0xFF}, {0xFF21, 0x00}, {0xFF22, 0x00}, {0xFF23, 0xBF},
		{0xFF24, 0x77}, {0xFF25, 0xF3}, {0xFF26, 0xF1},
		{0xFF40, 0x91}, {0xFF42, 0x00}, {0xFF43, 0x00}, {0xFF45, 0x00},
		{0xFF47, 0xFC}, {0xFF48, 0xFF}, {0xFF49, 0xFF},
		{0xFF4A, 0x00}, {0xFF4B, 0x00}, {0xFFFF, 0x00},
	} {
		m.bus.Write(rw.addr, rw.val)
	}
}

// ResetWithBoot resets to PC 0 with the installed boot ROM mapped in, so the
// CPU runs the real boot sequence before jumping into the cartridge.
func (m *Machine) ResetWithBoot() {
	m.bus.SetBootROM(m.bootROM)
	m.cpu = cpu.New(m.bus, m.bus.IRQ)
}

type machineState struct {
	Regs []byte
	Bus  []byte
}

// SaveState serializes CPU registers and the whole Bus (peripherals and
// cartridge) into an opaque byte slice suitable for SaveStateToFile.
func (m *Machine) SaveState() []byte {
	var regsBuf bytes.Buffer
	_ = gob.NewEncoder(&regsBuf).Encode(m.cpu.Regs)

	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(machineState{
		Regs: regsBuf.Bytes(),
		Bus:  m.bus.SaveState(),
	})
	return buf.Bytes()
}

// LoadState restores a byte slice produced by SaveState.
func (m *Machine) LoadState(data []byte) error {
	var s machineState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(s.Regs)).Decode(&m.cpu.Regs); err != nil {
		return err
	}
	m.bus.LoadState(s.Bus)
	return nil
}

// SaveStateToFile writes SaveState's output to path.
func (m *Machine) SaveStateToFile(path string) error {
	return os.WriteFile(path, m.SaveState(), 0o644)
}

// LoadStateFromFile reads and restores a save state written by SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadState(data)
}
