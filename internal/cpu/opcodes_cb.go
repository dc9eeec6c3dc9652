package cpu

func init() {
	buildPrefixedTable()
}

type shiftFn func(c *CPU, v byte) (res byte, cy bool)

func shiftRegOrHL(idx byte, fn shiftFn, clearZeroOnly bool) stepFunc {
	apply := func(c *CPU, v byte) byte {
		res, cy := fn(c, v)
		z := res == 0
		c.Regs.setZNHC(z, false, false, cy)
		return res
	}
	if idx != 6 {
		return func(c *CPU) stepResult {
			c.Regs.setReg8(idx, apply(c, c.Regs.reg8(idx)))
			return finished
		}
	}
	return func(c *CPU) stepResult {
		switch c.cbCycle {
		case 0:
			return needsMore
		case 1:
			v := c.bus.Read(c.Regs.getHL())
			c.Regs.Hold = uint16(apply(c, v))
			return needsMore
		default:
			c.bus.Write(c.Regs.getHL(), byte(c.Regs.Hold))
			return finished
		}
	}
}

func swapRegOrHL(idx byte) stepFunc {
	if idx != 6 {
		return func(c *CPU) stepResult {
			v := swap(c.Regs.reg8(idx))
			c.Regs.setReg8(idx, v)
			c.Regs.setZNHC(v == 0, false, false, false)
			return finished
		}
	}
	return func(c *CPU) stepResult {
		switch c.cbCycle {
		case 0:
			return needsMore
		case 1:
			v := swap(c.bus.Read(c.Regs.getHL()))
			c.Regs.Hold = uint16(v)
			c.Regs.setZNHC(v == 0, false, false, false)
			return needsMore
		default:
			c.bus.Write(c.Regs.getHL(), byte(c.Regs.Hold))
			return finished
		}
	}
}

func bitRegOrHL(bit, idx byte) stepFunc {
	test := func(c *CPU, v byte) {
		z := (v>>bit)&1 == 0
		c.Regs.F = (c.Regs.F & flagC) | flagH
		if z {
			c.Regs.F |= flagZ
		}
	}
	if idx != 6 {
		return func(c *CPU) stepResult {
			test(c, c.Regs.reg8(idx))
			return finished
		}
	}
	return func(c *CPU) stepResult {
		if c.cbCycle == 0 {
			return needsMore
		}
		test(c, c.bus.Read(c.Regs.getHL()))
		return finished
	}
}

func resSetRegOrHL(bit, idx byte, set bool) stepFunc {
	apply := func(v byte) byte {
		if set {
			return v | (1 << bit)
		}
		return v &^ (1 << bit)
	}
	if idx != 6 {
		return func(c *CPU) stepResult {
			c.Regs.setReg8(idx, apply(c.Regs.reg8(idx)))
			return finished
		}
	}
	return func(c *CPU) stepResult {
		switch c.cbCycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(apply(c.bus.Read(c.Regs.getHL())))
			return needsMore
		default:
			c.bus.Write(c.Regs.getHL(), byte(c.Regs.Hold))
			return finished
		}
	}
}

func buildPrefixedTable() {
	t := &prefixedTable
	for op := 0; op < 256; op++ {
		idx := byte(op & 7)
		row := op >> 3
		switch {
		case row == 0:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return rlc(v) }, false)
		case row == 1:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return rrc(v) }, false)
		case row == 2:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return rl(v, (c.Regs.F&flagC) != 0) }, false)
		case row == 3:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return rr(v, (c.Regs.F&flagC) != 0) }, false)
		case row == 4:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return sla(v) }, false)
		case row == 5:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return sra(v) }, false)
		case row == 6:
			t[op] = swapRegOrHL(idx)
		case row == 7:
			t[op] = shiftRegOrHL(idx, func(c *CPU, v byte) (byte, bool) { return srl(v) }, false)
		case row >= 8 && row <= 15:
			t[op] = bitRegOrHL(byte(row-8), idx)
		case row >= 16 && row <= 23:
			t[op] = resSetRegOrHL(byte(row-16), idx, false)
		default: // 24..31
			t[op] = resSetRegOrHL(byte(row-24), idx, true)
		}
	}
}
