// Package regs implements the Teak register file: accumulators, products,
// address/step/modifier registers, flags, program counter, stack pointer,
// repeat/block-repeat state, interrupt bit banks and their shadow banks.
//
// File is deliberately a plain struct of exported fields rather than an
// opaque type behind getters: AGU and AME both need direct, cheap access
// to the same state every cycle, mirroring how the teacher's RegFile
// exposes X/SP/PC/PSTATE directly rather than through accessor methods.
package regs

// File holds the complete architectural state of one Teak core.
type File struct {
	// Accumulators, 40 bits each, stored sign-extended in int64.
	A0, A1, B0, B1 int64

	// Products, 33 bits each (32-bit value + sign extension bit),
	// stored sign-extended in int64.
	P0, P1 int64

	// Multiplier inputs.
	X0, X1, Y0, Y1 int16

	// Address registers r0-r7, and their shadow bank (used by bankr).
	R  [8]uint16
	Rb [8]uint16

	// Step and modulo registers for the i-unit (paired with r0-r3) and
	// j-unit (paired with r4-r7), plus their "0" variant and shadow bank.
	StepI, StepI0, StepIb, StepI0b int16
	ModI, ModI0, ModIb, ModI0b     uint16
	StepJ, StepJ0, StepJb, StepJ0b int16
	ModJ, ModJ0, ModJb, ModJ0b     uint16

	// ARP: dual-pointer addressing selectors. Arp[0..1] select which of
	// r0-r3 (i-unit) / r4-r7 (j-unit) the ARP-relative addressing modes
	// use. ArpShadow backs bankr's all-ARP swap form.
	Arp       [2]uint8
	ArpShadow [2]uint8

	// Brv[U]/M[U] gate bit-reversed and modulo addressing per address
	// register unit U (0..7): when Brv[U] is set and M[U] is not, the
	// effective read address for rU is its bit-reverse rather than rU
	// itself (consulted by agu.Unit.RnAndModify).
	Brv [8]bool
	M   [8]bool

	// Sv is the signed shift-amount register read by the shifter and
	// written by Exp.
	Sv int16

	// Ps[0..1] selects the product-bus projection mode for p0/p1
	// (0:none, 1:>>1 sign-extended, 2:<<1 sign-extended, 3:<<2
	// sign-extended), consulted by ProductToBus40.
	Ps [2]uint8

	// Vtr[0..1] are the codebook-search bit-vector accumulators shifted
	// by the AME's VtrShr and read back by vtrmov/vtrclr.
	Vtr [2]uint16

	// Program counter (18 bits used), stack pointer (16 bits), page and
	// program-memory-move page registers.
	PC, SP   uint32
	Page     uint8
	Movpd    uint8
	PrPage   uint8

	// Repeat (single instruction) state.
	Rep  bool
	RepC uint16

	// Block-repeat state: up to 4 nested frames.
	BkRepStack [4]BkRepFrame
	Bcn        uint8 // number of active frames (0..4)
	Lp         bool  // true while any block-repeat frame is live
	Lc         uint16

	// Flags.
	FZ, FM, FE, FV, FLV   bool
	FC                    [2]bool
	FR, FS                bool
	Sar                   [2]bool // saturation-arm, per accumulator unit
	FLS                   bool    // set by the shifter on ShiftBus40 clamp

	// Mixp holds the r-value latched by the codebook-search primitive
	// (ame.Engine.Cbs).
	Mixp int32

	// Interrupt state: mask, pending and context-save-flag per
	// interrupt line, plus vectored-interrupt variants.
	Im, Ip, Ic    [3]bool
	Vim, Vip, Vic bool
	Viaddr        uint32
	IE            bool // global interrupt enable ("ie")

	// Shadow banks used by ContextStore/ContextRestore.
	ShadowA0, ShadowA1, ShadowB0, ShadowB1 int64
	ShadowX0, ShadowX1, ShadowY0, ShadowY1 int16
}

// BkRepFrame is one persisted block-repeat loop frame: the loop's last
// instruction address ("end") and its start address, used both live (on
// the BkRepStack) and in the bkrepsto/bkreprst persisted encoding.
type BkRepFrame struct {
	Start uint32
	End   uint32
}

// PCEndian selects the byte order PushPC/PopPC use to split an 18-bit PC
// into two 16-bit stack words. The reference interpreter makes this a
// build-time choice; here it is a runtime option set once at construction
// (see core.WithPCEndian).
type PCEndian uint8

const (
	// PCEndianHighFirst pushes pc[17:16] (extended to 16 bits)
	// before pc[15:0].
	PCEndianHighFirst PCEndian = iota
	// PCEndianLowFirst pushes pc[15:0] before pc[17:16].
	PCEndianLowFirst
)

// New returns a File with every field at its architectural reset value:
// all accumulators/products/registers zero, flags clear, PC at 0, the
// interrupt-enable flag clear, and no live repeat or block-repeat state.
func New() *File {
	return &File{}
}

// Reset restores every field to its power-on value, in place.
func (f *File) Reset() {
	*f = File{}
}

const (
	acc40Mask = (int64(1) << 40) - 1
	acc40Sign = int64(1) << 39
	prod33Mask = (int64(1) << 33) - 1
	prod33Sign = int64(1) << 32
)

// SignExtend40 sign-extends the low 40 bits of v as a 40-bit two's
// complement value.
func SignExtend40(v int64) int64 {
	v &= acc40Mask
	if v&acc40Sign != 0 {
		v |= ^acc40Mask
	}
	return v
}

// SignExtend33 sign-extends the low 33 bits of v as a 33-bit two's
// complement value.
func SignExtend33(v int64) int64 {
	v &= prod33Mask
	if v&prod33Sign != 0 {
		v |= ^prod33Mask
	}
	return v
}

// signExtendN sign-extends the low n bits of the raw pattern v (an
// unsigned bit pattern, as used by the product-bus projection).
func signExtendN(v uint64, n uint) int64 {
	mask := (int64(1) << n) - 1
	r := int64(v) & mask
	sign := int64(1) << (n - 1)
	if r&sign != 0 {
		r |= ^mask
	}
	return r
}

// ProductToBus40 projects product unit u (0 or 1) onto the 40-bit bus,
// applying that unit's Ps shift/sign-extend mode. Grounded on the
// reference interpreter's ProductToBus40: p[unit] is a 33-bit pattern
// (32-bit magnitude plus the psign extension bit, already folded into
// the sign-extended value stored in P0/P1); ps[unit] additionally
// shifts that pattern left or right before re-sign-extending it at the
// resulting width.
func (f *File) ProductToBus40(u int) int64 {
	p := f.P0
	if u == 1 {
		p = f.P1
	}
	raw := uint64(p) & ((uint64(1) << 33) - 1)
	switch f.Ps[u] {
	case 1:
		return signExtendN(raw>>1, 32)
	case 2:
		return signExtendN(raw<<1, 34)
	case 3:
		return signExtendN(raw<<2, 35)
	default:
		return signExtendN(raw, 33)
	}
}

// AccUnit names one of the four accumulators for indirect lookup.
type AccUnit uint8

const (
	AccA0 AccUnit = iota
	AccA1
	AccB0
	AccB1
)

// Acc returns the current 40-bit (sign-extended) value of the named
// accumulator.
func (f *File) Acc(u AccUnit) int64 {
	switch u {
	case AccA0:
		return f.A0
	case AccA1:
		return f.A1
	case AccB0:
		return f.B0
	default:
		return f.B1
	}
}

// SetAccRaw stores v (truncated/sign-extended to 40 bits) into the named
// accumulator without touching flags. Used internally by operations that
// manage flags themselves (e.g. the shifter, swap).
func (f *File) SetAccRaw(u AccUnit, v int64) {
	v = SignExtend40(v)
	switch u {
	case AccA0:
		f.A0 = v
	case AccA1:
		f.A1 = v
	case AccB0:
		f.B0 = v
	default:
		f.B1 = v
	}
}

// SetAccFlag updates Z/M (sign) from the 40-bit value v without touching
// C/V/E. Mirrors the reference interpreter's flag-only accumulator
// observers used by compare-style operations.
func (f *File) SetAccFlag(v int64) {
	v = SignExtend40(v)
	f.FZ = v == 0
	f.FM = v < 0
}

// SaturateAcc clamps v to the 32-bit signed range [-2^31, 2^31-1],
// returning the possibly-clamped value and whether clamping occurred.
// It clamps unconditionally and consults neither u nor any flag; SetAcc
// makes its own Sar check before calling it. This mirrors the explicit
// `lim` instruction's SaturateAcc_Unconditional path.
func (f *File) SaturateAcc(u AccUnit, v int64) (int64, bool) {
	const lo = -(int64(1) << 31)
	const hi = (int64(1) << 31) - 1
	if v > hi {
		return hi, true
	}
	if v < lo {
		return lo, true
	}
	return v, false
}

// SetAcc stores v into accumulator u, applying saturation when that
// unit's saturation-arm flag is set, and updates Z/M/E flags from the
// stored (possibly clamped) value. This is the common path named
// "SetAcc_Simple" + saturation in the reference interpreter; operations
// that must never saturate call SetAccRaw + SetAccFlag directly instead
// (SetAcc_NoSaturation).
func (f *File) SetAcc(u AccUnit, v int64) {
	v = SignExtend40(v)
	if f.Sar[unitIndex(u)] {
		if clamped, did := f.SaturateAcc(u, v); did {
			v = clamped
			f.FLS = true
		}
	}
	f.SetAccRaw(u, v)
	f.SetAccFlag(v)
	f.FE = v != int64(int32(v))
}

func unitIndex(u AccUnit) int {
	switch u {
	case AccA0, AccA1:
		return 0
	default:
		return 1
	}
}

// RegToBus16 reads the named architectural register (by the conventional
// Teak mnemonic) and returns its value truncated to 16 bits, used by
// mov-family operations that move between arbitrary registers and memory
// or each other through a common 16-bit bus.
func (f *File) RegToBus16(name string) uint16 {
	switch name {
	case "a0h":
		return uint16(f.A0 >> 16)
	case "a0l":
		return uint16(f.A0)
	case "a1h":
		return uint16(f.A1 >> 16)
	case "a1l":
		return uint16(f.A1)
	case "b0h":
		return uint16(f.B0 >> 16)
	case "b0l":
		return uint16(f.B0)
	case "b1h":
		return uint16(f.B1 >> 16)
	case "b1l":
		return uint16(f.B1)
	case "x0":
		return uint16(f.X0)
	case "x1":
		return uint16(f.X1)
	case "y0":
		return uint16(f.Y0)
	case "y1":
		return uint16(f.Y1)
	case "p0h":
		return uint16(f.ProductToBus40(0) >> 16)
	case "p1h":
		return uint16(f.ProductToBus40(1) >> 16)
	case "sp":
		return uint16(f.SP)
	case "pc":
		return uint16(f.PC)
	case "sv":
		return uint16(f.Sv)
	case "repc":
		return f.RepC
	case "stepi":
		return uint16(f.StepI)
	case "stepj":
		return uint16(f.StepJ)
	case "modi":
		return f.ModI
	case "modj":
		return f.ModJ
	default:
		for i := 0; i < 8; i++ {
			if name == rName(i) {
				return f.R[i]
			}
		}
		return 0
	}
}

// RegFromBus16 writes a 16-bit bus value into the named architectural
// register, the write-side counterpart to RegToBus16.
func (f *File) RegFromBus16(name string, v uint16) {
	switch name {
	case "a0h":
		f.A0 = SignExtend40((f.A0 & 0xFFFF) | int64(int32(int16(v)))<<16)
	case "a0l":
		f.A0 = SignExtend40((f.A0 &^ 0xFFFF) | int64(v))
	case "a1h":
		f.A1 = SignExtend40((f.A1 & 0xFFFF) | int64(int32(int16(v)))<<16)
	case "a1l":
		f.A1 = SignExtend40((f.A1 &^ 0xFFFF) | int64(v))
	case "b0h":
		f.B0 = SignExtend40((f.B0 & 0xFFFF) | int64(int32(int16(v)))<<16)
	case "b0l":
		f.B0 = SignExtend40((f.B0 &^ 0xFFFF) | int64(v))
	case "b1h":
		f.B1 = SignExtend40((f.B1 & 0xFFFF) | int64(int32(int16(v)))<<16)
	case "b1l":
		f.B1 = SignExtend40((f.B1 &^ 0xFFFF) | int64(v))
	case "x0":
		f.X0 = int16(v)
	case "x1":
		f.X1 = int16(v)
	case "y0":
		f.Y0 = int16(v)
	case "y1":
		f.Y1 = int16(v)
	case "sp":
		f.SP = uint32(v)
	case "sv":
		f.Sv = int16(v)
	case "repc":
		f.RepC = v
	case "stepi":
		f.StepI = int16(v)
	case "stepj":
		f.StepJ = int16(v)
	case "modi":
		f.ModI = v
	case "modj":
		f.ModJ = v
	default:
		for i := 0; i < 8; i++ {
			if name == rName(i) {
				f.R[i] = v
				return
			}
		}
	}
}

func rName(i int) string {
	return [8]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"}[i]
}
