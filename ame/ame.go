// Package ame implements the Teak ALU/MAC engine: 40-bit add/subtract
// with carry/overflow/latched-overflow flags, the 16x16->32 multiplier
// with configurable operand signedness, the product bus and shifter,
// the multiply-accumulate "ProductSum" tree, min/max extrema ("vtr"),
// the codebook-search primitive (Cbs) and the leading-sign-bit ("Exp")
// detector.
//
// Grounded directly on original_source/src/interpreter.h's AddSub,
// DoMultiplication, ProductSum, ShiftBus40, MinMaxVtr, Cbs and Exp, and
// on the teacher's ALU wrapping a *RegFile (emu/alu.go) rather than
// free functions operating on raw values.
package ame

import "github.com/sarchlab/teakcore/regs"

// Engine is the ALU/MAC engine for one core, bound to the register file
// whose flags it updates.
type Engine struct {
	Regs *regs.File
}

// New returns an AME bound to regs.
func New(r *regs.File) *Engine {
	return &Engine{Regs: r}
}

const acc40Mask = (1 << 40) - 1

// AddSub computes a+b (sub=false) or a-b (sub=true) as a 40-bit modular
// sum, sets FC[0] from the carry out of bit 39, sets FV from signed
// overflow (the reference's `((~(a^b)&(a^result))>>39)&1` with b negated
// for subtraction) and latches FLV (sticky overflow) when FV is set.
// Returns the 40-bit (sign-extended) result; it does not itself write an
// accumulator.
func (e *Engine) AddSub(a, b int64, sub bool) int64 {
	bb := b
	if sub {
		bb = -b
	}
	result := (a + bb) & acc40Mask
	signedResult := regs.SignExtend40(result)

	carry := uint64(a)&acc40Mask + uint64(bb)&acc40Mask
	e.Regs.FC[0] = (carry>>40)&1 != 0

	overflow := (^(a ^ bb) & (a ^ signedResult) >> 39) & 1
	e.Regs.FV = overflow != 0
	if e.Regs.FV {
		e.Regs.FLV = true
	}
	return signedResult
}

// MulSign selects the sign interpretation of one multiplier operand.
type MulSign uint8

const (
	MulSigned MulSign = iota
	MulUnsigned
)

// DoMultiplication multiplies x and y (the configured multiplier inputs)
// under the given operand sign configuration, setting P0/P1's shared
// sign flag (FS, reused here as "psign") when either operand is signed,
// and returns the 33-bit (sign-extended) product.
func (e *Engine) DoMultiplication(x, y int16, xSign, ySign MulSign) int64 {
	var xv, yv int64
	if xSign == MulSigned {
		xv = int64(x)
	} else {
		xv = int64(uint16(x))
	}
	if ySign == MulSigned {
		yv = int64(y)
	} else {
		yv = int64(uint16(y))
	}
	e.Regs.FS = xSign == MulSigned || ySign == MulSigned
	return regs.SignExtend33(xv * yv)
}

// SumBase selects ProductSum's accumulation base.
type SumBase uint8

const (
	SumZero SumBase = iota
	SumAcc
	SumSv
	SumSvRnd
)

// ProductSumConfig names one of the documented product-sum alignment
// configurations (p_add/p_adda/p_sub/p_suba in the reference).
type ProductSumConfig struct {
	Align bool // true: align P as a 24-bit value before summing
	Sub   bool
}

var (
	PAdd  = ProductSumConfig{Align: false, Sub: false}
	PAdda = ProductSumConfig{Align: true, Sub: false}
	PSub  = ProductSumConfig{Align: false, Sub: true}
	PSuba = ProductSumConfig{Align: true, Sub: true}
)

// ProductSum folds P0 and P1 into base (zero, the current accumulator
// value, or an SV-relative base) via two chained AddSub calls, matching
// the reference's carry/overflow-combination rule: flags from the two
// partial sums are OR'd when both additions share the same sign
// (Config.Sub consistent across both), else XOR'd.
func (e *Engine) ProductSum(base int64, cfg0, cfg1 ProductSumConfig) int64 {
	p0 := e.alignProduct(e.Regs.ProductToBus40(0), cfg0.Align)
	p1 := e.alignProduct(e.Regs.ProductToBus40(1), cfg1.Align)

	c0, v0 := false, false
	r := e.AddSub(base, p0, cfg0.Sub)
	c0, v0 = e.Regs.FC[0], e.Regs.FV

	c1, v1 := false, false
	r = e.AddSub(r, p1, cfg1.Sub)
	c1, v1 = e.Regs.FC[0], e.Regs.FV

	if cfg0.Sub == cfg1.Sub {
		e.Regs.FC[0] = c0 || c1
		e.Regs.FV = v0 || v1
	} else {
		e.Regs.FC[0] = c0 != c1
		e.Regs.FV = v0 != v1
	}
	if e.Regs.FV {
		e.Regs.FLV = true
	}
	return r
}

// alignProduct applies the documented "align" projection: the 24-bit
// sign-extended value of p shifted right 16, used by the product-sum
// configurations that treat the product as an already-aligned 16-bit
// quantity rather than its full 32-bit magnitude.
func (e *Engine) alignProduct(p int64, align bool) int64 {
	if !align {
		return p
	}
	return signExtend(p>>16, 24)
}

// ShiftDest names which side of the shifter's result feeds back.
type ShiftDest uint8

// ShiftBus40 shifts value by sv positions (positive: left, negative:
// right, magnitude may reach or exceed 40). It computes FV from bits
// shifted past the sign on a left shift (or forces FV when S==0 and any
// nonzero bit is lost on an oversized left shift), FC[0] from the last
// bit shifted out, and after a shift in either direction with S==0 and
// sar[1]==0 clamps the result to the signed 32-bit range and sets FLS,
// matching the reference's ShiftBus40 post-processing before
// SetAcc_Simple. An oversized left shift (sv >= 40) returns 0 without
// that clamp.
func (e *Engine) ShiftBus40(value int64, sv int) int64 {
	value = regs.SignExtend40(value)
	if sv >= 0 {
		return e.shiftLeft(value, sv)
	}
	return e.shiftRight(value, -sv)
}

func (e *Engine) shiftLeft(value int64, sv int) int64 {
	if sv >= 40 {
		if !e.Regs.FS && value != 0 {
			e.Regs.FV = true
			e.Regs.FLV = true
		}
		e.Regs.FC[0] = false
		return 0
	}
	shifted := value << uint(sv)
	result := regs.SignExtend40(shifted)
	// Overflow if any of the sv+1 highest bits (the sign plus every bit
	// shifted past it) are not all equal to the sign.
	sign := int64(0)
	if value < 0 {
		sign = -1
	}
	if sv > 0 {
		lost := value >> uint(39-sv)
		if lost != sign {
			e.Regs.FV = true
			e.Regs.FLV = true
		}
	}
	if sv > 0 {
		e.Regs.FC[0] = (value>>uint(40-sv))&1 != 0
	} else {
		e.Regs.FC[0] = false
	}
	return e.postShift(result)
}

func (e *Engine) shiftRight(value int64, sv int) int64 {
	if sv >= 40 {
		if !e.Regs.FS {
			if value < 0 {
				return e.postShift(-1)
			}
			return e.postShift(0)
		}
		return e.postShift(0)
	}
	e.Regs.FC[0] = (value>>uint(sv-1))&1 != 0
	result := value >> uint(sv)
	return e.postShift(regs.SignExtend40(result))
}

func (e *Engine) postShift(value int64) int64 {
	e.Regs.SetAccFlag(value)
	if !e.Regs.FS && !e.Regs.Sar[1] {
		const lo = -(int64(1) << 31)
		const hi = (int64(1) << 31) - 1
		if value > hi {
			value = hi
			e.Regs.FLS = true
		} else if value < lo {
			value = lo
			e.Regs.FLS = true
		}
	}
	return value
}

// Exp returns the number of leading redundant sign bits of the 40-bit
// value minus 8, matching the reference's Exp() (which counts from bit
// 39 down and subtracts 8 to report the usable normalization shift for
// a 32-bit mantissa).
func Exp(value int64) int {
	value = regs.SignExtend40(value)
	sign := value >> 39 & 1
	count := 0
	for i := 38; i >= 0; i-- {
		bit := (value >> uint(i)) & 1
		if bit != sign {
			break
		}
		count++
	}
	return count - 8
}

// MinMaxVtr splits a and b into high (bits 39:16, sign-extended 24-bit)
// and low (bits 15:0, sign-extended 16-bit) halves, keeps the min or max
// of each half independently and recombines them, setting FC[0]/FC[1]
// from which operand's half was selected (high/low respectively) for use
// by the vtrshr bit-vector shift-in. Mirrors the reference's MinMaxVtr +
// vtrshr pairing used by the codebook-search primitive.
func (e *Engine) MinMaxVtr(a, b int64, min bool) int64 {
	ah := signExtend(a>>16, 24)
	al := signExtend(a, 16)
	bh := signExtend(b>>16, 24)
	bl := signExtend(b, 16)

	var wh, wl int64
	var ch, cl bool
	if min {
		if ah <= bh {
			wh, ch = ah, false
		} else {
			wh, ch = bh, true
		}
		if al <= bl {
			wl, cl = al, false
		} else {
			wl, cl = bl, true
		}
	} else {
		if ah >= bh {
			wh, ch = ah, false
		} else {
			wh, ch = bh, true
		}
		if al >= bl {
			wl, cl = al, false
		} else {
			wl, cl = bl, true
		}
	}
	e.Regs.FC[0] = ch
	e.Regs.FC[1] = cl
	e.VtrShr()
	return regs.SignExtend40((wh&0xFFFFFF)<<16 | (wl & 0xFFFF))
}

// VtrShr shifts FC[0]/FC[1] into the top bit of Vtr[0]/Vtr[1]
// respectively, the bit-vector accumulators codebook search reads back
// through vtrmov/vtrclr. Called automatically at the end of
// MinMaxVtr, matching the reference's MinMaxVtr always ending with a
// vtrshr() call.
func (e *Engine) VtrShr() {
	var hi0, hi1 uint16
	if e.Regs.FC[0] {
		hi0 = 1 << 15
	}
	if e.Regs.FC[1] {
		hi1 = 1 << 15
	}
	e.Regs.Vtr[0] = (e.Regs.Vtr[0] >> 1) | hi0
	e.Regs.Vtr[1] = (e.Regs.Vtr[1] >> 1) | hi1
}

// VtrClr clears both bit-vector accumulators (vtrclr in the
// reference).
func (e *Engine) VtrClr() {
	e.Regs.Vtr[0] = 0
	e.Regs.Vtr[1] = 0
}

// VtrMov reads the bit-vector accumulators back onto the 16-bit bus:
// which selects Vtr[0] (0), Vtr[1] (1), or the combined form used by
// vtrmov (2): the high byte of Vtr[1] and the high byte of Vtr[0]
// shifted down, matching the reference's vtrmov0/vtrmov1/vtrmov.
func (e *Engine) VtrMov(which int) uint16 {
	switch which {
	case 0:
		return e.Regs.Vtr[0]
	case 1:
		return e.Regs.Vtr[1]
	default:
		return (e.Regs.Vtr[1] & 0xFF00) | (e.Regs.Vtr[0] >> 8)
	}
}

// CbsCond selects the codebook-search branch condition.
type CbsCond uint8

const (
	CbsGe CbsCond = iota
	CbsGt
)

// Cbs implements the codebook-search primitive: it takes the
// difference of the two pending products, on the configured GE/GT
// condition latches mixp and swaps the multiplier inputs, then
// schedules two more multiplications with v loaded into y1. Grounded
// directly on the reference interpreter's Cbs(u, v, r, cond),
// including its documented x0=y1/x1=y0 asymmetry (Open Question 2: a
// symmetric exchange would also assign y0 into x0, but the source only
// ever assigns x0 from y1).
func (e *Engine) Cbs(u, v, r uint16, cond CbsCond) {
	rg := e.Regs
	savedX0 := rg.X0
	rg.X0 = int16(u)
	diff := rg.ProductToBus40(0) - rg.ProductToBus40(1)

	rg.Y0 = int16(u)
	rg.P0 = e.DoMultiplication(rg.X0, rg.Y0, MulSigned, MulSigned)
	rg.Y0 = int16(rg.ProductToBus40(0) >> 16)
	rg.X0 = savedX0

	var take bool
	switch cond {
	case CbsGe:
		take = diff >= 0
	case CbsGt:
		take = diff > 0
	}
	if take {
		rg.Mixp = int32(int16(r))
		rg.X0 = rg.Y1
		rg.X1 = rg.Y0
	}

	rg.Y1 = int16(v)
	rg.P0 = e.DoMultiplication(rg.X0, rg.Y0, MulSigned, MulSigned)
	rg.P1 = e.DoMultiplication(rg.X1, rg.Y1, MulSigned, MulSigned)
}

func signExtend(v int64, bits uint) int64 {
	mask := int64(1)<<bits - 1
	v &= mask
	signBit := int64(1) << (bits - 1)
	if v&signBit != 0 {
		v |= ^mask
	}
	return v
}
