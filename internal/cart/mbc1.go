package cart

import "encoding/gob"
import "bytes"

// MBC1 implements MBC1 ROM/RAM banking, including the MBC1M multi-cart
// variant (several ~256KB games glued into one ROM image, selected by the
// secondary 2-bit register instead of a single ROM-bank-select write).
//
// MBC1M shifts the secondary register into bit 4 of the effective ROM bank
// instead of bit 5, and only uses the low 4 bits of the primary register
// (so each sub-game is addressed with a 4-bit bank number, not 5-bit).
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5       byte // lower 5 (or 4, multicart) bits of ROM bank number (0->1 remapped)
	ramBankOrRomHigh2 byte // either RAM bank (mode1) or ROM bank high bits (mode0)
	ramEnabled        bool
	modeSelect        byte // 0: ROM banking (default), 1: RAM banking
	multicart         bool
}

func NewMBC1(rom []byte, ramSize int, multicart bool) *MBC1 {
	m := &MBC1{rom: rom, multicart: multicart}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	// default to bank 1 for switchable area
	m.romBankLow5 = 1
	return m
}

func (m *MBC1) primaryMask() byte {
	if m.multicart {
		return 0x0F
	}
	return 0x1F
}

func (m *MBC1) secondaryShift() byte {
	if m.multicart {
		return 4
	}
	return 5
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		// Bank 0 or high bits applied in mode1
		if m.modeSelect == 0 {
			if int(addr) < len(m.rom) {
				return m.rom[addr]
			}
			return 0xFF
		}
		bank := int((m.ramBankOrRomHigh2 & 0x03) << m.secondaryShift())
		off := bank*0x4000 + int(addr)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.effectiveROMBank())
		off := bank*0x4000 + int(addr-0x4000)
		if off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		ramBank := 0
		if m.modeSelect == 1 {
			ramBank = int(m.ramBankOrRomHigh2 & 0x03)
		}
		off := ramBank*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		m.romBankLow5 = value & m.primaryMask()
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return
		}
		ramBank := 0
		if m.modeSelect == 1 {
			ramBank = int(m.ramBankOrRomHigh2 & 0x03)
		}
		off := ramBank*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

func (m *MBC1) effectiveROMBank() byte {
	high := m.ramBankOrRomHigh2 & 0x03
	bank := m.romBankLow5 | (high << m.secondaryShift())
	return bank
}

func (m *MBC1) SaveRAM() []byte {
	if len(m.ram) == 0 {
		return nil
	}
	out := make([]byte, len(m.ram))
	copy(out, m.ram)
	return out
}

func (m *MBC1) LoadRAM(data []byte) {
	if len(m.ram) == 0 || len(data) == 0 {
		return
	}
	copy(m.ram, data)
}

type mbc1State struct {
	RomBankLow5       byte
	RamBankOrRomHigh2 byte
	RamEnabled        bool
	ModeSelect        byte
	Multicart         bool
	RAM               []byte
}

func (m *MBC1) SaveState() []byte {
	var buf bytes.Buffer
	st := mbc1State{
		RomBankLow5:       m.romBankLow5,
		RamBankOrRomHigh2: m.ramBankOrRomHigh2,
		RamEnabled:        m.ramEnabled,
		ModeSelect:        m.modeSelect,
		Multicart:         m.multicart,
		RAM:               m.ram,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (m *MBC1) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var st mbc1State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return
	}
	m.romBankLow5 = st.RomBankLow5
	m.ramBankOrRomHigh2 = st.RamBankOrRomHigh2
	m.ramEnabled = st.RamEnabled
	m.modeSelect = st.ModeSelect
	m.multicart = st.Multicart
	if len(st.RAM) == len(m.ram) {
		copy(m.ram, st.RAM)
	}
}
