package cart

import "testing"

func TestMBC3_ROMBanking(t *testing.T) {
	rom := make([]byte, 512*1024)
	for bank := 0; bank < 32; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC3(rom, 0)

	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank got %02X want 01", got)
	}
	m.Write(0x2000, 0x10)
	if got := m.Read(0x4000); got != 0x10 {
		t.Fatalf("bank select got %02X want 10", got)
	}
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC3_RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 4*0x2000)
	m.Write(0x0000, 0x0A) // enable RAM
	m.Write(0x4000, 0x02) // RAM bank 2
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("RAM bank2 RW failed: got %02X", got)
	}
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x55 {
		t.Fatalf("RAM bank0 unexpectedly aliases bank2")
	}
}

func TestMBC3_SaveStateRoundTrip(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC3(rom, 0x2000)
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x99)
	data := m.SaveState()
	n := NewMBC3(rom, 0x2000)
	n.LoadState(data)
	if n.Read(0xA000) != 0x99 {
		t.Fatalf("RAM did not survive SaveState/LoadState")
	}
}
