// Package serial models the SB/SC shift register pair at 0xFF01-0xFF02.
// Only conductor-side (internal clock) transfers complete, since no link
// partner is modeled; follower-side transfers start but never finish.
package serial

import "io"

// InterruptRequester raises the IF bit for the Serial source (bit 3).
type InterruptRequester func()

const transferCycles = 128 // M-cycles for one byte at the internal clock

// Serial owns SB/SC and the in-flight transfer countdown.
type Serial struct {
	sb byte
	sc byte // bit7 transfer-in-progress, bit0 conductor(1)/follower(0)

	remaining int // M-cycles left in the current conductor transfer; 0 = idle

	sink io.Writer
	req  InterruptRequester
}

func New(req InterruptRequester) *Serial {
	return &Serial{req: req}
}

// SetSink installs (or clears, with nil) the host byte sink.
func (s *Serial) SetSink(w io.Writer) { s.sink = w }

func (s *Serial) Read(addr uint16) byte {
	switch addr {
	case 0xFF01:
		return s.sb
	case 0xFF02:
		return 0x7E | (s.sc & 0x81)
	}
	return 0xFF
}

func (s *Serial) Write(addr uint16, value byte) {
	switch addr {
	case 0xFF01:
		s.sb = value
	case 0xFF02:
		s.sc = value & 0x81
		if s.sc&0x81 == 0x81 { // conductor mode, start bit set
			s.remaining = transferCycles
		} else {
			s.remaining = 0
		}
	}
}

// Tick advances the in-flight transfer by one M-cycle. When a conductor
// transfer's countdown reaches zero, SB is emitted to the sink, cleared, the
// start bit in SC drops, and the Serial interrupt is requested.
func (s *Serial) Tick() {
	if s.remaining == 0 {
		return
	}
	s.remaining--
	if s.remaining == 0 {
		if s.sink != nil {
			_, _ = s.sink.Write([]byte{s.sb})
		}
		s.sb = 0
		s.sc &^= 0x80
		if s.req != nil {
			s.req()
		}
	}
}

type State struct {
	SB, SC    byte
	Remaining int
}

func (s *Serial) SaveState() State { return State{s.sb, s.sc, s.remaining} }
func (s *Serial) LoadState(st State) {
	s.sb, s.sc, s.remaining = st.SB, st.SC, st.Remaining
}
