package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/teakcore/insts"
)

var _ = Describe("Decoder", func() {
	var d *insts.Decoder

	BeforeEach(func() {
		d = insts.NewDecoder()
	})

	It("decodes a nop", func() {
		inst := d.Decode([]uint16{0x0000})
		Expect(inst.Op).To(Equal(insts.OpNop))
		Expect(inst.Length).To(Equal(1))
	})

	It("decodes an alm add with register+step operand fields", func() {
		// family 1 (alm acc/acc), op=Add(0), rn=3, step=Inc(1), acc=A1(1)
		bits := uint16(3<<4) | uint16(1<<2) | uint16(1)
		word := uint16(1<<10) | bits
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpAdd))
		Expect(inst.Acc).To(Equal(insts.AccA1))
		Expect(inst.Rn).To(Equal(uint8(3)))
		Expect(inst.Step).To(Equal(insts.StepInc))
		Expect(inst.Length).To(Equal(1))
	})

	It("consumes an expansion word for mov imm -> acc", func() {
		word := uint16(9 << 10) // family famMovImmAcc
		inst := d.Decode([]uint16{word, 0xBEEF})
		Expect(inst.Op).To(Equal(insts.OpMovImmToAcc))
		Expect(inst.Has16).To(BeTrue())
		Expect(inst.Imm16).To(Equal(uint16(0xBEEF)))
		Expect(inst.Length).To(Equal(2))
	})

	It("reports OpUndefinedFamily for an unassigned family code", func() {
		word := uint16(63 << 10)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpUndefinedFamily))
	})

	It("reports OpUndefinedFamily for an empty stream", func() {
		inst := d.Decode(nil)
		Expect(inst.Op).To(Equal(insts.OpUndefinedFamily))
	})

	It("decodes cbs_gt with the condition bit set", func() {
		word := uint16(41<<10) | uint16(1<<8) | uint16(2<<6)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpCbsGt))
		Expect(inst.Acc).To(Equal(insts.AccB0))
	})

	It("decodes max2_vtr with the min bit clear", func() {
		word := uint16(42 << 10)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpMax2Vtr))
	})

	It("decodes vtrclr when the vtr-reg mode bits are zero", func() {
		word := uint16(43 << 10)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpVtrClr))
	})

	It("decodes vtrmov with a nonzero mode", func() {
		word := uint16(43<<10) | uint16(1<<8)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpVtrMov))
	})

	It("decodes bitrev_ebrv and carries the address register index", func() {
		word := uint16(44<<10) | uint16(2<<8) | uint16(5<<3)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpBitrevEbrv))
		Expect(inst.Rn).To(Equal(uint8(5)))
	})

	It("decodes the ARP add_sub combine form", func() {
		word := uint16(45<<10) | uint16(1<<8)
		inst := d.Decode([]uint16{word})
		Expect(inst.Op).To(Equal(insts.OpArpAddSub))
	})
})
