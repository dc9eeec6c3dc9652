package cart

import "testing"

func TestMBC5_ROMBanking9Bit(t *testing.T) {
	rom := make([]byte, 4*1024*1024) // 256 banks
	for bank := 0; bank < 256; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC5(rom, 0)
	m.Write(0x2000, 0xFF) // low 8 bits
	m.Write(0x3000, 0x00) // high bit clear
	if got := m.Read(0x4000); got != 0xFF {
		t.Fatalf("bank select got %02X want FF", got)
	}

	// Bank 0 is selectable on MBC5 (no remap).
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x00 {
		t.Fatalf("bank0 (no remap on MBC5) got %02X want 00", got)
	}
}

func TestMBC5_RAMBanking(t *testing.T) {
	rom := make([]byte, 0x8000)
	m := NewMBC5(rom, 4*0x2000)
	m.Write(0x0000, 0x0A)
	m.Write(0x4000, 0x03)
	m.Write(0xA000, 0x21)
	if got := m.Read(0xA000); got != 0x21 {
		t.Fatalf("RAM RW failed: got %02X", got)
	}
}
