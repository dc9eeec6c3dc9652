package joypad

import "testing"

func TestModeSelectAndMatrix(t *testing.T) {
	j := New(nil)
	if got := j.Read(0xFF00) & 0x0F; got != 0x0F {
		t.Fatalf("default unselected read got %02X want 0F", got)
	}

	j.Write(0xFF00, 0x20) // P14=0 selects D-Pad
	j.Set(Right, true)
	j.Set(Up, true)
	if got := j.Read(0xFF00) & 0x0F; got != 0x0A {
		t.Fatalf("D-Pad matrix got %02X want 0A", got)
	}

	j.Write(0xFF00, 0x10) // P15=0 selects buttons
	j.Set(A, true)
	j.Set(Start, true)
	if got := j.Read(0xFF00) & 0x0F; got != 0x06 {
		t.Fatalf("button matrix got %02X want 06", got)
	}
}

func TestFallingEdgeRaisesInterruptOnlyWhenRowSelected(t *testing.T) {
	var fires int
	j := New(func() { fires++ })
	j.Write(0xFF00, 0x20) // select D-Pad row (P14=0)
	j.Set(Right, true)
	if fires != 1 {
		t.Fatalf("expected interrupt on press while row selected, got %d fires", fires)
	}
	j.Set(Right, false)
	j.Write(0xFF00, 0x10) // deselect D-Pad, select buttons
	fires = 0
	j.Set(Up, true) // D-Pad row not selected: no interrupt
	if fires != 0 {
		t.Fatalf("unexpected interrupt while row not selected")
	}
}

func TestInvertTogglesPressedState(t *testing.T) {
	j := New(nil)
	j.Write(0xFF00, 0x20)
	j.Invert(Down)
	if got := j.Read(0xFF00) & 0x08; got != 0 {
		t.Fatalf("Down should read pressed after invert")
	}
	j.Invert(Down)
	if got := j.Read(0xFF00) & 0x08; got != 0x08 {
		t.Fatalf("Down should read released after second invert")
	}
}
