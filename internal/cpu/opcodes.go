package cpu

// stepFunc executes the work scheduled for the current M-cycle of an
// instruction (c.Regs.Cycle). Cycle 0 is always the cycle in which the
// opcode itself was fetched (Tick has already performed that bus read and
// incremented PC before calling the step function), so a stepFunc only
// needs to issue its OWN bus transaction, if any, for cycles >= 1 — cycle 0
// is free to do pure decode/compute work but must never issue a second bus
// transaction in the same M-cycle as the fetch.
type stepFunc func(c *CPU) stepResult

var primaryTable [256]stepFunc
var prefixedTable [256]stepFunc

func init() {
	buildPrimaryTable()
	buildPrefixedTable()
}

// op1 wraps a zero-extra-cycle instruction: all of its work is pure
// register/flag computation performed during the fetch's own M-cycle.
func op1(fn func(c *CPU)) stepFunc {
	return func(c *CPU) stepResult {
		fn(c)
		return finished
	}
}

// fetchImm8 returns the immediate byte fetch step body for single-operand
// 2-cycle instructions: cycle 0 is a no-op (already fetched the opcode),
// cycle 1 reads the operand and applies fn.
func fetchImm8(fn func(c *CPU, v byte)) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		default:
			v := c.bus.Read(c.Regs.PC)
			c.Regs.PC++
			fn(c, v)
			return finished
		}
	}
}

func fetchImm16(fn func(c *CPU, v uint16)) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		default:
			hi := uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			v := c.Regs.Hold | (hi << 8)
			fn(c, v)
			return finished
		}
	}
}

func ldR8Imm8(dst byte) stepFunc {
	return fetchImm8(func(c *CPU, v byte) { c.Regs.setReg8(dst, v) })
}

// ldR8R8 covers the 0x40-0x7F block: register-to-register loads, including
// the (HL) src/dst forms (2 M-cycles) and HALT (0x76, handled by the
// caller, never routed here).
func ldR8R8(dst, src byte) stepFunc {
	if dst != 6 && src != 6 {
		return op1(func(c *CPU) {
			c.Regs.setReg8(dst, c.Regs.reg8(src))
		})
	}
	if src == 6 {
		return func(c *CPU) stepResult {
			if c.Regs.Cycle == 0 {
				return needsMore
			}
			c.Regs.setReg8(dst, c.bus.Read(c.Regs.getHL()))
			return finished
		}
	}
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		c.bus.Write(c.Regs.getHL(), c.Regs.reg8(src))
		return finished
	}
}

type aluFn func(a, b byte) (res byte, z, n, h, cy bool)

func applyAlu(c *CPU, fn aluFn, operand byte) {
	r, z, n, h, cy := fn(c.Regs.A, operand)
	c.Regs.A = r
	c.Regs.setZNHC(z, n, h, cy)
}

func aluAdd(a, b byte) (byte, bool, bool, bool, bool) { return add8(a, b) }
func aluSub(a, b byte) (byte, bool, bool, bool, bool) { return sub8(a, b) }
func aluAnd(a, b byte) (byte, bool, bool, bool, bool) { return and8(a, b) }
func aluXor(a, b byte) (byte, bool, bool, bool, bool) { return xor8(a, b) }
func aluOr(a, b byte) (byte, bool, bool, bool, bool)  { return or8(a, b) }

func aluReg8(fn aluFn, withCarry bool, src byte) stepFunc {
	run := func(c *CPU) {
		operand := c.Regs.reg8(src)
		if withCarry {
			r, z, n, h, cy := adc8(c.Regs.A, operand, (c.Regs.F&flagC) != 0)
			c.Regs.A = r
			c.Regs.setZNHC(z, n, h, cy)
			return
		}
		applyAlu(c, fn, operand)
	}
	if src != 6 {
		return op1(run)
	}
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		operand := c.bus.Read(c.Regs.getHL())
		if withCarry {
			r, z, n, h, cy := adc8(c.Regs.A, operand, (c.Regs.F&flagC) != 0)
			c.Regs.A = r
			c.Regs.setZNHC(z, n, h, cy)
		} else {
			applyAlu(c, fn, operand)
		}
		return finished
	}
}

func sbcReg8(src byte) stepFunc {
	run := func(c *CPU, operand byte) {
		r, z, n, h, cy := sbc8(c.Regs.A, operand, (c.Regs.F&flagC) != 0)
		c.Regs.A = r
		c.Regs.setZNHC(z, n, h, cy)
	}
	if src != 6 {
		return op1(func(c *CPU) { run(c, c.Regs.reg8(src)) })
	}
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		run(c, c.bus.Read(c.Regs.getHL()))
		return finished
	}
}

func sbcImm8() stepFunc {
	return fetchImm8(func(c *CPU, v byte) {
		r, z, n, h, cy := sbc8(c.Regs.A, v, (c.Regs.F&flagC) != 0)
		c.Regs.A = r
		c.Regs.setZNHC(z, n, h, cy)
	})
}

func aluImm8(fn aluFn, withCarry bool) stepFunc {
	return fetchImm8(func(c *CPU, v byte) {
		if withCarry {
			r, z, n, h, cy := adc8(c.Regs.A, v, (c.Regs.F&flagC) != 0)
			c.Regs.A = r
			c.Regs.setZNHC(z, n, h, cy)
			return
		}
		applyAlu(c, fn, v)
	})
}

func cpReg8(src byte) stepFunc {
	run := func(c *CPU, operand byte) {
		z, n, h, cy := cp8(c.Regs.A, operand)
		c.Regs.setZNHC(z, n, h, cy)
	}
	if src != 6 {
		return op1(func(c *CPU) { run(c, c.Regs.reg8(src)) })
	}
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		run(c, c.bus.Read(c.Regs.getHL()))
		return finished
	}
}

func cpImm8() stepFunc {
	return fetchImm8(func(c *CPU, v byte) {
		z, n, h, cy := cp8(c.Regs.A, v)
		c.Regs.setZNHC(z, n, h, cy)
	})
}

func incDecReg8(idx byte, isInc bool) stepFunc {
	apply := func(c *CPU, v byte) byte {
		var res byte
		var z, h bool
		if isInc {
			res, z, h = inc8(v)
		} else {
			res, z, h = dec8(v)
		}
		c.Regs.setZNHC(z, !isInc, h, (c.Regs.F&flagC) != 0)
		return res
	}
	if idx != 6 {
		return op1(func(c *CPU) {
			c.Regs.setReg8(idx, apply(c, c.Regs.reg8(idx)))
		})
	}
	// INC/DEC (HL): 3 M-cycles (read, modify, write)
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
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

func incDec16(p byte, delta int16) stepFunc {
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		v := c.Regs.reg16sp(p)
		c.Regs.setReg16sp(p, uint16(int32(v)+int32(delta)))
		return finished
	}
}

func addHLReg16(p byte) stepFunc {
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		hl := c.Regs.getHL()
		operand := c.Regs.reg16sp(p)
		res, h, cy := add16(hl, operand)
		c.Regs.setHL(res)
		c.Regs.setZNHC((c.Regs.F&flagZ) != 0, false, h, cy)
		return finished
	}
}

func ldRR16Imm16(p byte) stepFunc {
	return fetchImm16(func(c *CPU, v uint16) { c.Regs.setReg16sp(p, v) })
}

func push16Steps(get func(c *CPU) uint16) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			return needsMore
		case 2:
			v := get(c)
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(v>>8))
			return needsMore
		default:
			v := get(c)
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(v))
			return finished
		}
	}
}

func pop16Steps(set func(c *CPU, v uint16)) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			lo := uint16(c.bus.Read(c.Regs.SP))
			c.Regs.SP++
			c.Regs.Hold = lo
			return needsMore
		default:
			hi := uint16(c.bus.Read(c.Regs.SP))
			c.Regs.SP++
			set(c, c.Regs.Hold|(hi<<8))
			return finished
		}
	}
}

func push16(p byte) stepFunc {
	return push16Steps(func(c *CPU) uint16 { return c.Regs.reg16af(p) })
}

func pop16(p byte) stepFunc {
	return pop16Steps(func(c *CPU, v uint16) { c.Regs.setReg16af(p, v) })
}

// condTrue evaluates the 4-entry condition table used by JR/JP/CALL/RET cc.
func condTrue(c *CPU, cc byte) bool {
	switch cc {
	case 0:
		return (c.Regs.F & flagZ) == 0
	case 1:
		return (c.Regs.F & flagZ) != 0
	case 2:
		return (c.Regs.F & flagC) == 0
	default:
		return (c.Regs.F & flagC) != 0
	}
}

func jrR8(cond int) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			off := int8(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			c.Regs.Hold = uint16(byte(off))
			if cond >= 0 && !condTrue(c, byte(cond)) {
				return finished
			}
			return needsMore
		default:
			c.Regs.PC = uint16(int32(c.Regs.PC) + int32(int8(byte(c.Regs.Hold))))
			return finished
		}
	}
}

// jpA16Full implements JP a16 / JP cc,a16 directly (simpler than reusing
// fetchImm16, since the branch decision happens after both bytes are read
// but before the final internal jump cycle for the conditional-taken case).
func jpA16Full(cond int) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		case 2:
			hi := uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			c.Regs.Hold |= hi << 8
			if cond >= 0 && !condTrue(c, byte(cond)) {
				return finished
			}
			// Taken (or unconditional): one more internal cycle loads PC,
			// making 4 M-cycles total.
			return needsMore
		default:
			c.Regs.PC = c.Regs.Hold
			return finished
		}
	}
}

func jpHL() stepFunc {
	return op1(func(c *CPU) { c.Regs.PC = c.Regs.getHL() })
}

func callA16(cond int) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		case 2:
			hi := uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			c.Regs.Hold |= hi << 8
			if cond >= 0 && !condTrue(c, byte(cond)) {
				return finished
			}
			return needsMore
		case 3:
			return needsMore
		case 4:
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(c.Regs.PC>>8))
			return needsMore
		default:
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(c.Regs.PC))
			c.Regs.PC = c.Regs.Hold
			return finished
		}
	}
}

// ret implements RET / RET cc / RETI. Unconditional RET and RETI take 4
// M-cycles (fetch, pop lo, pop hi, internal PC-set); RET cc takes 2 if not
// taken (fetch, internal condition check) or 5 if taken (plus the extra
// condition-check cycle ahead of the pop/set sequence).
func ret(cond int, enableIME bool) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			if cond < 0 {
				lo := uint16(c.bus.Read(c.Regs.SP))
				c.Regs.SP++
				c.Regs.Hold = lo
				return needsMore
			}
			if !condTrue(c, byte(cond)) {
				return finished
			}
			return needsMore
		case 2:
			if cond < 0 {
				hi := uint16(c.bus.Read(c.Regs.SP))
				c.Regs.SP++
				c.Regs.PC = c.Regs.Hold | (hi << 8)
				return needsMore
			}
			lo := uint16(c.bus.Read(c.Regs.SP))
			c.Regs.SP++
			c.Regs.Hold = lo
			return needsMore
		case 3:
			if cond < 0 {
				if enableIME {
					c.ime = true
				}
				return finished
			}
			hi := uint16(c.bus.Read(c.Regs.SP))
			c.Regs.SP++
			c.Regs.PC = c.Regs.Hold | (hi << 8)
			return needsMore
		default:
			if enableIME {
				c.ime = true
			}
			return finished
		}
	}
}

// rst takes 4 M-cycles: fetch, internal delay, push PC high, push PC low +
// jump.
func rst(addr uint16) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			return needsMore
		case 2:
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(c.Regs.PC>>8))
			return needsMore
		default:
			c.Regs.SP--
			c.bus.Write(c.Regs.SP, byte(c.Regs.PC))
			c.Regs.PC = addr
			return finished
		}
	}
}

func ldA16SP() stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		case 2:
			hi := uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			c.Regs.Hold |= hi << 8
			return needsMore
		case 3:
			c.bus.Write(c.Regs.Hold, byte(c.Regs.SP))
			return needsMore
		default:
			c.bus.Write(c.Regs.Hold+1, byte(c.Regs.SP>>8))
			return finished
		}
	}
}

func ldA16A(toA bool) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		case 2:
			hi := uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			c.Regs.Hold |= hi << 8
			return needsMore
		default:
			if toA {
				c.Regs.A = c.bus.Read(c.Regs.Hold)
			} else {
				c.bus.Write(c.Regs.Hold, c.Regs.A)
			}
			return finished
		}
	}
}

func ldhA8(toA bool) stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = 0xFF00 + uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		default:
			if toA {
				c.Regs.A = c.bus.Read(c.Regs.Hold)
			} else {
				c.bus.Write(c.Regs.Hold, c.Regs.A)
			}
			return finished
		}
	}
}

func ldhCAddr(toA bool) stepFunc {
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		addr := 0xFF00 + uint16(c.Regs.C)
		if toA {
			c.Regs.A = c.bus.Read(addr)
		} else {
			c.bus.Write(addr, c.Regs.A)
		}
		return finished
	}
}

func ldIndirect(getAddr func(c *CPU) uint16, toA bool, post func(c *CPU, hl uint16)) stepFunc {
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		addr := getAddr(c)
		if toA {
			c.Regs.A = c.bus.Read(addr)
		} else {
			c.bus.Write(addr, c.Regs.A)
		}
		if post != nil {
			post(c, addr)
		}
		return finished
	}
}

func ldHLd8() stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			c.Regs.Hold = uint16(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			return needsMore
		default:
			c.bus.Write(c.Regs.getHL(), byte(c.Regs.Hold))
			return finished
		}
	}
}

func ldSPHL() stepFunc {
	return func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		c.Regs.SP = c.Regs.getHL()
		return finished
	}
}

func ldHLSPOff() stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			off := int8(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			res, h, cy := addSPSigned(c.Regs.SP, off)
			c.Regs.setHL(res)
			c.Regs.setZNHC(false, false, h, cy)
			return needsMore
		default:
			return finished
		}
	}
}

func addSPr8() stepFunc {
	return func(c *CPU) stepResult {
		switch c.Regs.Cycle {
		case 0:
			return needsMore
		case 1:
			off := int8(c.bus.Read(c.Regs.PC))
			c.Regs.PC++
			res, h, cy := addSPSigned(c.Regs.SP, off)
			c.Regs.SP = res
			c.Regs.setZNHC(false, false, h, cy)
			return needsMore
		case 2:
			return needsMore
		default:
			return finished
		}
	}
}

func buildPrimaryTable() {
	t := &primaryTable

	t[0x00] = op1(func(c *CPU) {})

	// 8-bit LD r,d8
	for _, e := range []struct{ op, dst byte }{
		{0x06, 0}, {0x0E, 1}, {0x16, 2}, {0x1E, 3}, {0x26, 4}, {0x2E, 5}, {0x3E, 7},
	} {
		t[e.op] = ldR8Imm8(e.dst)
	}
	t[0x36] = ldHLd8()

	// Register-to-register load block 0x40-0x7F (0x76 is HALT).
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			t[op] = op1(func(c *CPU) { c.enterHalt() })
			continue
		}
		dst := byte((op >> 3) & 7)
		src := byte(op & 7)
		t[byte(op)] = ldR8R8(dst, src)
	}

	// 16-bit LD rr,d16
	t[0x01] = ldRR16Imm16(0)
	t[0x11] = ldRR16Imm16(1)
	t[0x21] = ldRR16Imm16(2)
	t[0x31] = ldRR16Imm16(3)
	t[0x08] = ldA16SP()

	t[0x02] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getBC() }, false, nil)
	t[0x12] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getDE() }, false, nil)
	t[0x0A] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getBC() }, true, nil)
	t[0x1A] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getDE() }, true, nil)

	t[0x22] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getHL() }, false, func(c *CPU, hl uint16) { c.Regs.setHL(hl + 1) })
	t[0x2A] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getHL() }, true, func(c *CPU, hl uint16) { c.Regs.setHL(hl + 1) })
	t[0x32] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getHL() }, false, func(c *CPU, hl uint16) { c.Regs.setHL(hl - 1) })
	t[0x3A] = ldIndirect(func(c *CPU) uint16 { return c.Regs.getHL() }, true, func(c *CPU, hl uint16) { c.Regs.setHL(hl - 1) })

	t[0xE0] = ldhA8(false)
	t[0xF0] = ldhA8(true)
	t[0xE2] = ldhCAddr(false)
	t[0xF2] = ldhCAddr(true)
	t[0xEA] = ldA16A(false)
	t[0xFA] = ldA16A(true)

	// Rotates on A (always clear Z).
	t[0x07] = op1(func(c *CPU) { r, cy := rlc(c.Regs.A); c.Regs.A = r; c.Regs.setZNHC(false, false, false, cy) })
	t[0x0F] = op1(func(c *CPU) { r, cy := rrc(c.Regs.A); c.Regs.A = r; c.Regs.setZNHC(false, false, false, cy) })
	t[0x17] = op1(func(c *CPU) { r, cy := rl(c.Regs.A, (c.Regs.F&flagC) != 0); c.Regs.A = r; c.Regs.setZNHC(false, false, false, cy) })
	t[0x1F] = op1(func(c *CPU) { r, cy := rr(c.Regs.A, (c.Regs.F&flagC) != 0); c.Regs.A = r; c.Regs.setZNHC(false, false, false, cy) })

	t[0x27] = op1(func(c *CPU) { a, f := daa(c.Regs.A, c.Regs.F); c.Regs.A = a; c.Regs.F = f })
	t[0x2F] = op1(func(c *CPU) {
		c.Regs.A = ^c.Regs.A
		c.Regs.F = (c.Regs.F & (flagZ | flagC)) | flagN | flagH
	})
	t[0x37] = op1(func(c *CPU) { c.Regs.F = (c.Regs.F & flagZ) | flagC })
	t[0x3F] = op1(func(c *CPU) {
		cy := (c.Regs.F & flagC) == 0
		c.Regs.F = (c.Regs.F & flagZ)
		if cy {
			c.Regs.F |= flagC
		}
	})

	// INC/DEC r8, (HL)
	incOps := map[byte]byte{0x04: 0, 0x0C: 1, 0x14: 2, 0x1C: 3, 0x24: 4, 0x2C: 5, 0x34: 6, 0x3C: 7}
	for op, idx := range incOps {
		t[op] = incDecReg8(idx, true)
	}
	decOps := map[byte]byte{0x05: 0, 0x0D: 1, 0x15: 2, 0x1D: 3, 0x25: 4, 0x2D: 5, 0x35: 6, 0x3D: 7}
	for op, idx := range decOps {
		t[op] = incDecReg8(idx, false)
	}

	// ALU A,r / A,(HL) / A,d8
	addOps := []byte{0x80, 0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87}
	adcOps := []byte{0x88, 0x89, 0x8A, 0x8B, 0x8C, 0x8D, 0x8E, 0x8F}
	subOps := []byte{0x90, 0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97}
	sbcOps := []byte{0x98, 0x99, 0x9A, 0x9B, 0x9C, 0x9D, 0x9E, 0x9F}
	andOps := []byte{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5, 0xA6, 0xA7}
	xorOps := []byte{0xA8, 0xA9, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF}
	orOps := []byte{0xB0, 0xB1, 0xB2, 0xB3, 0xB4, 0xB5, 0xB6, 0xB7}
	cpOps := []byte{0xB8, 0xB9, 0xBA, 0xBB, 0xBC, 0xBD, 0xBE, 0xBF}
	for i, op := range addOps {
		t[op] = aluReg8(aluAdd, false, byte(regOrderIdx(i)))
	}
	for i, op := range adcOps {
		t[op] = aluReg8(nil, true, byte(regOrderIdx(i)))
	}
	for i, op := range subOps {
		t[op] = aluReg8(aluSub, false, byte(regOrderIdx(i)))
	}
	for i, op := range sbcOps {
		t[op] = aluReg8(nil, true, byte(regOrderIdx(i)))
	}
	for i, op := range andOps {
		t[op] = aluReg8(aluAnd, false, byte(regOrderIdx(i)))
	}
	for i, op := range xorOps {
		t[op] = aluReg8(aluXor, false, byte(regOrderIdx(i)))
	}
	for i, op := range orOps {
		t[op] = aluReg8(aluOr, false, byte(regOrderIdx(i)))
	}
	for i, op := range cpOps {
		t[op] = cpReg8(byte(regOrderIdx(i)))
	}
	// aluReg8's withCarry branch always computes ADC, so the SBC entries the
	// loop above filled in are replaced here by the dedicated sbcReg8
	// builder.
	for i, op := range sbcOps {
		idx := byte(regOrderIdx(i))
		t[op] = sbcReg8(idx)
	}

	t[0xC6] = aluImm8(aluAdd, false)
	t[0xCE] = aluImm8(nil, true)
	t[0xD6] = aluImm8(aluSub, false)
	t[0xDE] = sbcImm8()
	t[0xE6] = aluImm8(aluAnd, false)
	t[0xEE] = aluImm8(aluXor, false)
	t[0xF6] = aluImm8(aluOr, false)
	t[0xFE] = cpImm8()

	// 16-bit INC/DEC
	t[0x03] = incDec16(0, 1)
	t[0x13] = incDec16(1, 1)
	t[0x23] = incDec16(2, 1)
	t[0x33] = incDec16(3, 1)
	t[0x0B] = incDec16(0, -1)
	t[0x1B] = incDec16(1, -1)
	t[0x2B] = incDec16(2, -1)
	t[0x3B] = incDec16(3, -1)

	t[0x09] = addHLReg16(0)
	t[0x19] = addHLReg16(1)
	t[0x29] = addHLReg16(2)
	t[0x39] = addHLReg16(3)

	// Control flow
	t[0xC3] = jpA16Full(-1)
	t[0xC2] = jpA16Full(0)
	t[0xCA] = jpA16Full(1)
	t[0xD2] = jpA16Full(2)
	t[0xDA] = jpA16Full(3)
	t[0xE9] = jpHL()

	t[0x18] = jrR8(-1)
	t[0x20] = jrR8(0)
	t[0x28] = jrR8(1)
	t[0x30] = jrR8(2)
	t[0x38] = jrR8(3)

	t[0xCD] = callA16(-1)
	t[0xC4] = callA16(0)
	t[0xCC] = callA16(1)
	t[0xD4] = callA16(2)
	t[0xDC] = callA16(3)

	t[0xC9] = ret(-1, false)
	t[0xD9] = ret(-1, true)
	t[0xC0] = ret(0, false)
	t[0xC8] = ret(1, false)
	t[0xD0] = ret(2, false)
	t[0xD8] = ret(3, false)

	t[0xC7] = rst(0x00)
	t[0xCF] = rst(0x08)
	t[0xD7] = rst(0x10)
	t[0xDF] = rst(0x18)
	t[0xE7] = rst(0x20)
	t[0xEF] = rst(0x28)
	t[0xF7] = rst(0x30)
	t[0xFF] = rst(0x38)

	// PUSH/POP
	t[0xC5] = push16(0)
	t[0xD5] = push16(1)
	t[0xE5] = push16(2)
	t[0xF5] = push16(3)
	t[0xC1] = pop16(0)
	t[0xD1] = pop16(1)
	t[0xE1] = pop16(2)
	t[0xF1] = pop16(3)

	t[0xF9] = ldSPHL()
	t[0xF8] = ldHLSPOff()
	t[0xE8] = addSPr8()

	t[0xF3] = op1(func(c *CPU) { c.ime = false; c.eiDelay = 0 })
	t[0xFB] = op1(func(c *CPU) { c.eiDelay = 2 })
	t[0x10] = op1(func(c *CPU) { c.stopped = true })

	// CB prefix: Regs.Cycle 0 is the 0xCB byte's own fetch (no bus op of its
	// own). Regs.Cycle 1 fetches the suffix opcode and, in the same
	// M-cycle, begins executing the prefixed table's step function at
	// cbCycle 0 — register-direct CB ops (no (HL) operand) finish right
	// there, giving CB r its correct 2-M-cycle total; (HL) forms return
	// needsMore from cbCycle 0 and run their own extra M-cycles from there.
	t[0xCB] = func(c *CPU) stepResult {
		if c.Regs.Cycle == 0 {
			return needsMore
		}
		if !c.Regs.Prefixed {
			c.Regs.CBOp = c.bus.Read(c.Regs.PC)
			c.Regs.PC++
			c.Regs.Prefixed = true
			c.cbCycle = 0
		}
		res := prefixedTable[c.Regs.CBOp](c)
		if res == needsMore {
			c.cbCycle++
		}
		return res
	}
}

// regOrderIdx maps a 0..7 slice position over {B,C,D,E,H,L,(HL),A} opcodes
// (which skip index 6 for non-(HL) groups except where the 7th slot is the
// (HL) opcode itself) onto the canonical Z80 operand index. The opcode
// groups above are listed in exactly B,C,D,E,H,L,(HL),A order already, so
// this is the identity function; it exists to make that assumption explicit
// and documented at each call site.
func regOrderIdx(i int) int { return i }
