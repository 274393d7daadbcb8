// Package agu implements the Teak address generation unit: linear,
// modulo and bit-reversed post-increment/decrement addressing over the
// r0-r7 address registers, and ARP dual-pointer pair resolution.
//
// Grounded on the reference interpreter's modr/modr_dmod/modr_i2/...
// family (original_source/src/interpreter.h) and on the teacher's
// pattern of a small unit type wrapping *regs.File (emu.ALU, emu.
// BranchUnit) rather than free functions, so AGU composes the same way
// AME and CE do.
package agu

import "github.com/sarchlab/teakcore/regs"

// StepMode selects how RnAndModify advances an address register.
type StepMode uint8

const (
	StepNone StepMode = iota // Z: no change
	StepInc                  // I: +1
	StepDec                  // D: -1
	StepStep                 // S: += step register
)

// ModDialect distinguishes the two documented interpretations of the
// modulo-addressing wraparound arithmetic ("legacy" vs "modern" Teak
// generations differ in how the modulo window is computed).
type ModDialect uint8

const (
	ModDialectLegacy ModDialect = iota
	ModDialectModern
)

// Unit is the address generation unit for one core, bound to the
// register file it steps.
type Unit struct {
	Regs    *regs.File
	Dialect ModDialect
}

// New returns an AGU bound to regs.
func New(r *regs.File) *Unit {
	return &Unit{Regs: r, Dialect: ModDialectModern}
}

// unit 0 = i-unit (r0-r3, stepi/modi), 1 = j-unit (r4-r7, stepj/modj).
func iUnitOf(rn int) int {
	if rn >= 4 {
		return 1
	}
	return 0
}

func (u *Unit) stepAndMod(rn int) (step int16, mod uint16) {
	if iUnitOf(rn) == 0 {
		return u.Regs.StepI, u.Regs.ModI
	}
	return u.Regs.StepJ, u.Regs.ModJ
}

// linear computes addr+delta with no wraparound beyond 16 bits.
func linear(addr uint16, delta int32) uint16 {
	return uint16(int32(addr) + delta)
}

// modulo wraps addr+delta within the modulo window [addr&^mod-1 sized
// region], per the legacy/modern dialect. The modulo register m encodes
// a window size of m+1 entries, matching the reference's modulo
// arithmetic which treats mod==0 as "modulo disabled" (falls back to
// linear).
func modulo(addr uint16, delta int32, mod uint16, dialect ModDialect) uint16 {
	if mod == 0 {
		return linear(addr, delta)
	}
	size := int32(mod) + 1
	if dialect == ModDialectLegacy {
		base := int32(addr) - int32(addr)%size
		rel := (int32(addr)%size + delta) % size
		if rel < 0 {
			rel += size
		}
		return uint16(base + rel)
	}
	// Modern dialect: window is anchored at the address register's value
	// at the time stepping began, truncated to the modulo size boundary.
	anchor := int32(addr) &^ (size - 1)
	rel := (int32(addr) - anchor + delta) % size
	if rel < 0 {
		rel += size
	}
	return uint16(anchor + rel)
}

// bitReverseAdd adds delta to addr in bit-reversed-carry fashion (used
// by BitRevModify).
func bitReverseAdd(addr uint16, delta uint16) uint16 {
	// Add with carry propagating from MSB to LSB instead of LSB to MSB:
	// reverse both operands, add normally, reverse the result.
	return reverse16(reverse16(addr) + reverse16(delta))
}

func reverse16(v uint16) uint16 {
	var r uint16
	for i := 0; i < 16; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// RnAndModify returns the address to use for this access and then
// advances rn according to mode and the i/j-unit's step/modulo
// registers, per u.Dialect. Per the reference's RnAddress: when
// Brv[rn] is set and M[rn] (modulo addressing) is not, the returned
// address is the bit-reverse of rU rather than rU itself, while rU's
// post-update stays linear. The post-update wraps within the modulo
// window only when M[rn] is set and Brv[rn] is clear.
func (u *Unit) RnAndModify(rn int, mode StepMode) uint16 {
	stored := u.Regs.R[rn]
	step, mod := u.stepAndMod(rn)
	if u.Regs.Brv[rn] || !u.Regs.M[rn] {
		mod = 0 // linear update
	}

	addr := stored
	if u.Regs.Brv[rn] && !u.Regs.M[rn] {
		addr = reverse16(stored)
	}

	switch mode {
	case StepNone:
		return addr
	case StepInc:
		u.Regs.R[rn] = modulo(stored, 1, mod, u.Dialect)
	case StepDec:
		u.Regs.R[rn] = modulo(stored, -1, mod, u.Dialect)
	case StepStep:
		u.Regs.R[rn] = modulo(stored, int32(step), mod, u.Dialect)
	}
	return addr
}

// BitRevModify is the bitrev-addressing counterpart to RnAndModify: the
// current value of rn is returned, then rn is advanced by step using
// bit-reversed-carry addition instead of the modulo window.
func (u *Unit) BitRevModify(rn int) uint16 {
	addr := u.Regs.R[rn]
	step, _ := u.stepAndMod(rn)
	u.Regs.R[rn] = bitReverseAdd(addr, uint16(step))
	return addr
}

// Bitrev replaces rn's stored value with its bit-reverse in place,
// matching the reference's bitrev(Rn a): a one-shot register mutation,
// not a step-time address computation.
func (u *Unit) Bitrev(rn int) {
	u.Regs.R[rn] = reverse16(u.Regs.R[rn])
}

// BitrevDbrv reverses rn and clears its bit-reverse-addressing enable
// flag (bitrev_dbrv in the reference).
func (u *Unit) BitrevDbrv(rn int) {
	u.Bitrev(rn)
	u.Regs.Brv[rn] = false
}

// BitrevEbrv reverses rn and sets its bit-reverse-addressing enable
// flag (bitrev_ebrv in the reference).
func (u *Unit) BitrevEbrv(rn int) {
	u.Bitrev(rn)
	u.Regs.Brv[rn] = true
}

// ArpPair resolves the i-unit/j-unit address register currently
// selected by Arp[0]/Arp[1] for the dual-pointer ("ARP") addressing
// forms (add_add, mova, mov2, exchange_iaj, ...). unit selects the
// i-unit (0) or j-unit (1) pointer.
func (u *Unit) ArpPair(unit int) int {
	sel := u.Regs.Arp[unit]
	if unit == 0 {
		return int(sel % 4) // r0..r3
	}
	return 4 + int(sel%4) // r4..r7
}
