// Package cpu implements the Sharp LR35902 instruction execution engine as a
// per-M-cycle step machine: one call to Tick retires exactly one machine
// cycle, issuing at most one bus transaction, so callers can interleave PPU,
// timer, serial, joypad and DMA stepping at the same granularity real
// hardware does.
package cpu

// Bus is the address space the CPU reads and writes through. Both ordinary
// memory and every memory-mapped register live behind this interface;
// nothing about byte-level I/O is CPU-specific.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// Interrupts is the narrow slice of interrupts.Controller the CPU needs:
// it checks and acknowledges pending requests directly, rather than going
// through Bus reads of 0xFF0F/0xFFFF, the same way the rest of the machine
// still reaches those registers through the bus.
type Interrupts interface {
	Pending() bool
	HighestPending() (bit int, ok bool)
	Ack(bit int)
}

type stepResult int

const (
	needsMore stepResult = iota
	finished
	finishedKeepPC
)

// dispatchPhase tracks what Tick should do next when the CPU isn't in the
// middle of executing an ordinary instruction.
type dispatchPhase int

const (
	phaseNone dispatchPhase = iota
	phaseInterruptDispatch
)

// CPU holds the SM83 register file and the bookkeeping needed to resume a
// multi-M-cycle instruction, interrupt dispatch, or HALT exactly where the
// last Tick left off.
type CPU struct {
	Regs Registers

	bus Bus
	irq Interrupts

	ime bool
	// eiDelay counts down the one-instruction delay EI imposes before IME
	// actually flips true: EI sets it to 2, its own finishInstruction call
	// decrements it to 1 (no-op), and the *following* instruction's
	// finishInstruction call decrements it to 0 and applies ime=true. DI
	// or a taken interrupt cancel it outright.
	eiDelay int

	halted  bool
	haltBug bool // HALT executed with IME=0 and a pending interrupt: PC fails to advance once
	stopped bool

	cbCycle     int
	phase       dispatchPhase
	dispatchBit int
}

// New constructs a CPU wired to bus for memory access and irq for interrupt
// bookkeeping. PC starts at 0; callers that need to skip a boot ROM should
// set Regs.PC directly before the first Tick.
func New(bus Bus, irq Interrupts) *CPU {
	return &CPU{bus: bus, irq: irq}
}

// IME reports whether interrupts are currently enabled (after accounting
// for any still-armed EI delay).
func (c *CPU) IME() bool { return c.ime }

// Halted reports whether the CPU is parked in HALT awaiting an interrupt.
func (c *CPU) Halted() bool { return c.halted }

// Stopped reports whether the CPU executed STOP; the host is responsible
// for clearing it on joypad wake.
func (c *CPU) Stopped() bool { return c.stopped }

// Resume clears a STOP condition (called by the host once a joypad press
// is observed).
func (c *CPU) Resume() { c.stopped = false }

// Tick executes exactly one M-cycle. It returns true once the instruction,
// interrupt dispatch, or HALT idling step it was in the middle of has fully
// completed and the CPU is ready to begin a fresh fetch on the next call.
// This is purely informational; callers are not required to use it.
func (c *CPU) Tick() bool {
	if c.phase == phaseInterruptDispatch {
		return c.stepInterruptDispatch()
	}

	if c.stopped {
		return true
	}

	if c.halted {
		if c.irq.Pending() {
			c.halted = false
			// Falls through to the normal fetch/dispatch path below in the
			// same Tick call the interrupt becomes pending, mirroring
			// hardware where HALT exit and the next decision happen back
			// to back.
		} else {
			return true
		}
	}

	if c.Regs.Cycle == 0 && !c.Regs.Prefixed {
		if c.ime && c.irq.Pending() {
			c.beginInterruptDispatch()
			return c.stepInterruptDispatch()
		}
		op := c.bus.Read(c.Regs.PC)
		if c.haltBug {
			c.haltBug = false
		} else {
			c.Regs.PC++
		}
		c.Regs.CurOp = op
	}

	res := primaryTable[c.Regs.CurOp](c)
	switch res {
	case needsMore:
		c.Regs.Cycle++
		return false
	default:
		c.finishInstruction()
		return true
	}
}

func (c *CPU) finishInstruction() {
	c.Regs.Cycle = 0
	c.Regs.Prefixed = false
	c.cbCycle = 0
	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.ime = true
		}
	}
}

// beginInterruptDispatch starts the 5 M-cycle interrupt acknowledge
// sequence: two internal delay cycles, pushing PC high then low, and
// finally loading PC with the vector address. IME is cleared immediately
// (unlike EI, whose effect is delayed one instruction) and the IF bit is
// acknowledged only once dispatch actually commits to a vector.
func (c *CPU) beginInterruptDispatch() {
	bit, ok := c.irq.HighestPending()
	if !ok {
		return
	}
	c.ime = false
	c.eiDelay = 0
	c.dispatchBit = bit
	c.phase = phaseInterruptDispatch
	c.Regs.Cycle = 0
}

func (c *CPU) stepInterruptDispatch() bool {
	switch c.Regs.Cycle {
	case 0, 1:
		c.Regs.Cycle++
		return false
	case 2:
		c.Regs.SP--
		c.bus.Write(c.Regs.SP, byte(c.Regs.PC>>8))
		c.Regs.Cycle++
		return false
	case 3:
		c.Regs.SP--
		c.bus.Write(c.Regs.SP, byte(c.Regs.PC))
		c.Regs.Cycle++
		return false
	default:
		c.irq.Ack(c.dispatchBit)
		c.Regs.PC = 0x0040 + uint16(c.dispatchBit)*8
		c.phase = phaseNone
		c.Regs.Cycle = 0
		return true
	}
}

// enterHalt is invoked by the HALT opcode's step function. It also
// reproduces the HALT bug: when IME is 0 and an interrupt is already
// pending at the moment HALT executes, the CPU does not actually halt and
// instead fails to advance PC on the very next fetch, so the following
// opcode byte is read (and executed) twice.
func (c *CPU) enterHalt() {
	if !c.ime && c.irq.Pending() {
		c.haltBug = true
		return
	}
	c.halted = true
}
