package apu

import "testing"

func TestAPU_PowerOffBlocksWrites(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x00) // power off
	a.CPUWrite(0xFF11, 0xFF) // should be ignored while off
	if got := a.CPURead(0xFF11); got&0x3F != 0x3F {
		t.Fatalf("write while powered off was not ignored: NR11=%02x", got)
	}

	a.CPUWrite(0xFF26, 0x80) // power on
	a.CPUWrite(0xFF11, 0x80)
	if got := (a.CPURead(0xFF11) >> 6) & 3; got != 2 {
		t.Fatalf("duty bits got %d, want 2", got)
	}
}

func TestAPU_NR52ReflectsChannelEnables(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x80)

	a.CPUWrite(0xFF12, 0xF0) // CH1 DAC on (vol nonzero)
	a.CPUWrite(0xFF14, 0x80) // trigger CH1
	if got := a.CPURead(0xFF26); got&0x01 == 0 {
		t.Fatalf("NR52 bit0 not set after CH1 trigger: %02x", got)
	}

	a.CPUWrite(0xFF12, 0x00) // DAC off disables the channel immediately
	if got := a.CPURead(0xFF26); got&0x01 != 0 {
		t.Fatalf("NR52 bit0 still set after DAC off: %02x", got)
	}
}

func TestAPU_WaveRAMReadWrite(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x80)
	for i := uint16(0); i < 16; i++ {
		a.CPUWrite(0xFF30+i, byte(i*0x11))
	}
	for i := uint16(0); i < 16; i++ {
		if got := a.CPURead(0xFF30 + i); got != byte(i*0x11) {
			t.Fatalf("wave RAM[%d] = %02x, want %02x", i, got, byte(i*0x11))
		}
	}
}

func TestAPU_NoSynthesis(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF14, 0x80)
	a.Tick(70224)
	if n := a.StereoAvailable(); n != 0 {
		t.Fatalf("StereoAvailable() = %d, want 0 (register-store-only APU)", n)
	}
	if frames := a.PullStereo(64); frames != nil {
		t.Fatalf("PullStereo() returned %d frames, want none", len(frames))
	}
}

func TestAPU_SaveLoadStateRoundTrip(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF11, 0xC5)
	a.CPUWrite(0xFF30, 0xAB)

	data := a.SaveState()

	b := New(48000)
	b.LoadState(data)
	if got, want := b.CPURead(0xFF11), a.CPURead(0xFF11); got != want {
		t.Fatalf("NR11 after load = %02x, want %02x", got, want)
	}
	if got := b.CPURead(0xFF30); got != 0xAB {
		t.Fatalf("wave RAM[0] after load = %02x, want AB", got)
	}
}
