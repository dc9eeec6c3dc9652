package cart

import "testing"

func TestMBC1_ROMBanking(t *testing.T) {
	// Build a 128KB ROM with distinct bytes per bank at start of each bank
	rom := make([]byte, 128*1024)
	for bank := 0; bank < 8; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC1(rom, 0, false)

	// Bank0 region reads from bank 0 in mode 0
	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}

	// Switchable bank defaults to 1
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank1 read got %02X want 01", got)
	}

	// Select bank 3
	m.Write(0x2000, 0x03)
	if got := m.Read(0x4000); got != 0x03 {
		t.Fatalf("bank3 read got %02X want 03", got)
	}

	// Writing 0 maps to 1
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC1_RAMBanking_Mode1(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC1(rom, 32*1024, false)

	// Enable RAM
	m.Write(0x0000, 0x0A)

	// Select mode 1 (RAM banking)
	m.Write(0x6000, 0x01)
	// Select RAM bank 2 via high bits
	m.Write(0x4000, 0x02)

	// Write/read in A000-BFFF should go to bank 2
	m.Write(0xA000, 0x77)
	if got := m.Read(0xA000); got != 0x77 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}
}

func TestMBC1_RAMDisabledReadsFF(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC1(rom, 8*1024, false)
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}
}

func TestMBC1_Multicart_SecondaryShiftsIntoBit4(t *testing.T) {
	// 1MB multicart image: 4 sub-games of 256KB each, 16 banks of 0x4000 per game.
	rom := make([]byte, 1024*1024)
	for game := 0; game < 4; game++ {
		for bank := 0; bank < 16; bank++ {
			idx := game*16 + bank
			rom[idx*0x4000] = byte(idx)
		}
	}
	m := NewMBC1(rom, 0, true)

	// Select game 2, bank 3 within it: secondary=2, primary=3.
	m.Write(0x4000, 0x02)
	m.Write(0x2000, 0x03)
	want := byte(2*16 + 3)
	if got := m.Read(0x4000); got != want {
		t.Fatalf("multicart bank select got %02X want %02X", got, want)
	}
}

func TestMBC1_SaveStateRoundTrip(t *testing.T) {
	rom := make([]byte, 128*1024)
	m := NewMBC1(rom, 8*1024, false)
	m.Write(0x0000, 0x0A)
	m.Write(0x2000, 0x05)
	m.Write(0xA000, 0x42)

	data := m.SaveState()
	n := NewMBC1(rom, 8*1024, false)
	n.LoadState(data)
	if n.Read(0x4000) != m.Read(0x4000) {
		t.Fatalf("bank selection did not survive SaveState/LoadState")
	}
	if n.Read(0xA000) != 0x42 {
		t.Fatalf("RAM contents did not survive SaveState/LoadState")
	}
}
