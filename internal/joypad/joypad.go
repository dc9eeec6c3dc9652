// Package joypad models the 0xFF00 JOYP register: the mode-select latch,
// the active-low read matrix it exposes, and the falling-edge interrupt.
package joypad

// InterruptRequester raises the IF bit for the Joypad source (bit 4).
type InterruptRequester func()

// Button bitmask values, arbitrary but stable within this package.
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Joypad owns the pressed-button state and the host-selected read mode.
type Joypad struct {
	selectBits byte // raw bits 5-4 as last written to 0xFF00
	pressed    byte // bitmask of currently pressed buttons (1 = pressed)
	lastLower4 byte // previous active-low nibble, for edge detection

	req InterruptRequester
}

func New(req InterruptRequester) *Joypad {
	j := &Joypad{req: req}
	j.lastLower4 = 0x0F
	return j
}

func (j *Joypad) Read(addr uint16) byte {
	if addr != 0xFF00 {
		return 0xFF
	}
	return 0xC0 | (j.selectBits & 0x30) | j.lowerNibble()
}

func (j *Joypad) Write(addr uint16, value byte) {
	if addr != 0xFF00 {
		return
	}
	j.selectBits = value & 0x30
	j.updateEdge()
}

// lowerNibble computes the active-low 4-bit read result for the currently
// selected row(s). Both rows selected (mode Both) ORs the two matrices
// together, matching real hardware's wired-AND of both selects.
func (j *Joypad) lowerNibble() byte {
	out := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects the D-Pad
		if j.pressed&Right != 0 {
			out &^= 0x01
		}
		if j.pressed&Left != 0 {
			out &^= 0x02
		}
		if j.pressed&Up != 0 {
			out &^= 0x04
		}
		if j.pressed&Down != 0 {
			out &^= 0x08
		}
	}
	if j.selectBits&0x20 == 0 { // P15 low selects the action buttons
		if j.pressed&A != 0 {
			out &^= 0x01
		}
		if j.pressed&B != 0 {
			out &^= 0x02
		}
		if j.pressed&Select != 0 {
			out &^= 0x04
		}
		if j.pressed&Start != 0 {
			out &^= 0x08
		}
	}
	return out
}

// Set records button as pressed/released. A falling edge (released->pressed)
// on a button whose row is currently selected raises the Joypad interrupt.
func (j *Joypad) Set(button byte, down bool) {
	if down {
		j.pressed |= button
	} else {
		j.pressed &^= button
	}
	j.updateEdge()
}

// Invert toggles button's pressed state; convenience for the host-side debug
// surface (spec.md's invert_<button> operations).
func (j *Joypad) Invert(button byte) {
	j.Set(button, j.pressed&button == 0)
}

func (j *Joypad) updateEdge() {
	cur := j.lowerNibble()
	fallen := j.lastLower4 &^ cur // bits that were 1 (released) and are now 0 (pressed)
	if fallen != 0 && j.req != nil {
		j.req()
	}
	j.lastLower4 = cur
}

type State struct {
	SelectBits, Pressed, LastLower4 byte
}

func (j *Joypad) SaveState() State { return State{j.selectBits, j.pressed, j.lastLower4} }
func (j *Joypad) LoadState(s State) {
	j.selectBits, j.pressed, j.lastLower4 = s.SelectBits, s.Pressed, s.LastLower4
}
