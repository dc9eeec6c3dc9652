package machine

import "testing"

// minimalROM returns a 32KB ROM-only image with a valid-enough header for
// NewCartridgeStrict to accept (logo bytes aren't checked by this codebase,
// only image length and the cartridge-type byte, 0x00 ROM-only here), running a tight JP loop at 0x0100 so StepFrame has
// something to execute without halting or crashing.
func minimalROM() []byte {
	rom := make([]byte, 0x8000)
	// 0100: JP 0100h  (C3 00 01) -- spins forever
	rom[0x0100] = 0xC3
	rom[0x0101] = 0x00
	rom[0x0102] = 0x01
	return rom
}

func TestMachine_LoadAndStepFrame(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(minimalROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if got, want := m.cpu.Regs.PC, uint16(0x0100); got != want {
		t.Fatalf("PC after post-boot reset = %04x, want %04x", got, want)
	}
	m.StepFrame()
	fb := m.Framebuffer()
	if len(fb) != 160*144*4 {
		t.Fatalf("framebuffer length = %d, want %d", len(fb), 160*144*4)
	}
}

func TestMachine_ButtonsReachJoypad(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(minimalROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.SetButtons(Buttons{A: true, Right: true})
	// Select the action-button row; bit0 (A) should read low (pressed).
	m.bus.Write(0xFF00, 0x10)
	if got := m.bus.Read(0xFF00); got&0x01 != 0 {
		t.Fatalf("JOYP A bit = 1, want 0 (pressed) got=%02x", got)
	}
}

func TestMachine_SaveLoadStateRoundTrip(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(minimalROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	pcBefore := m.cpu.Regs.PC

	data := m.SaveState()

	m2 := New(Config{})
	if err := m2.LoadCartridge(minimalROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	if err := m2.LoadState(data); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if got := m2.cpu.Regs.PC; got != pcBefore {
		t.Fatalf("PC after LoadState = %04x, want %04x", got, pcBefore)
	}
}

func TestMachine_APUAlwaysSilent(t *testing.T) {
	m := New(Config{})
	if err := m.LoadCartridge(minimalROM(), nil); err != nil {
		t.Fatalf("LoadCartridge: %v", err)
	}
	m.StepFrame()
	if n := m.APUBufferedStereo(); n != 0 {
		t.Fatalf("APUBufferedStereo() = %d, want 0", n)
	}
	if frames := m.APUPullStereo(64); len(frames) != 0 {
		t.Fatalf("APUPullStereo() returned %d frames, want 0", len(frames))
	}
}
