package ame_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/teakcore/ame"
	"github.com/sarchlab/teakcore/regs"
)

var _ = Describe("Engine", func() {
	var (
		r *regs.File
		e *ame.Engine
	)

	BeforeEach(func() {
		r = regs.New()
		e = ame.New(r)
	})

	Describe("AddSub", func() {
		It("adds two small positive values with no flags set", func() {
			result := e.AddSub(5, 3, false)
			Expect(result).To(Equal(int64(8)))
			Expect(r.FV).To(BeFalse())
		})

		It("subtracts b from a", func() {
			result := e.AddSub(10, 3, true)
			Expect(result).To(Equal(int64(7)))
		})

		It("sets FV and latches FLV on signed overflow past the 40-bit positive limit", func() {
			maxPositive := int64(1)<<39 - 1
			result := e.AddSub(maxPositive, 1, false)
			Expect(result).To(Equal(-(int64(1) << 39)))
			Expect(r.FV).To(BeTrue())
			Expect(r.FLV).To(BeTrue())
		})
	})

	Describe("DoMultiplication", func() {
		It("multiplies two signed operands and marks the product signed", func() {
			p := e.DoMultiplication(-2, 3, ame.MulSigned, ame.MulSigned)
			Expect(p).To(Equal(int64(-6)))
			Expect(r.FS).To(BeTrue())
		})

		It("treats operands as unsigned when requested", func() {
			p := e.DoMultiplication(-1, 2, ame.MulUnsigned, ame.MulSigned)
			Expect(p).To(Equal(int64(0xFFFF) * 2))
		})
	})

	Describe("ShiftBus40", func() {
		It("performs an arithmetic right shift on a negative value", func() {
			result := e.ShiftBus40(-8, -1)
			Expect(result).To(Equal(int64(-4)))
		})

		It("performs a left shift and flags overflow when a sign-changing bit is lost", func() {
			r.FS = false
			value := int64(1) << 38
			result := e.ShiftBus40(value, 1)
			Expect(r.FV).To(BeTrue())
			Expect(result).NotTo(BeZero())
		})
	})

	Describe("Exp", func() {
		It("reports maximal redundancy for an all-zero value", func() {
			Expect(ame.Exp(0)).To(Equal(31))
		})

		It("reports no redundancy when the bit below the sign differs", func() {
			Expect(ame.Exp(int64(1) << 38)).To(Equal(-8))
		})
	})

	Describe("MinMaxVtr", func() {
		It("keeps the smaller high half and the smaller low half independently", func() {
			a := int64(5)<<16 | 3
			b := int64(2)<<16 | 9
			result := e.MinMaxVtr(a, b, true)
			Expect(result).To(Equal(int64(2)<<16 | 3))
			Expect(r.FC[0]).To(BeTrue())  // high half taken from b
			Expect(r.FC[1]).To(BeFalse()) // low half taken from a
		})

		It("shifts the selection outcome into vtr[0]/vtr[1] as a side effect", func() {
			a := int64(5)<<16 | 3
			b := int64(2)<<16 | 9
			e.MinMaxVtr(a, b, true)
			Expect(r.Vtr[0] & (1 << 15)).To(Equal(uint16(1 << 15)))
			Expect(r.Vtr[1] & (1 << 15)).To(Equal(uint16(0)))
		})
	})

	Describe("VtrClr and VtrMov", func() {
		It("reads back the two bit-vector accumulators independently", func() {
			r.Vtr[0] = 0x1234
			r.Vtr[1] = 0x5678
			Expect(e.VtrMov(0)).To(Equal(uint16(0x1234)))
			Expect(e.VtrMov(1)).To(Equal(uint16(0x5678)))
		})

		It("combines the high bytes of both accumulators in the vtrmov form", func() {
			r.Vtr[0] = 0x12AB
			r.Vtr[1] = 0x56CD
			Expect(e.VtrMov(2)).To(Equal(uint16(0x5612)))
		})

		It("clears both accumulators", func() {
			r.Vtr[0] = 0xFFFF
			r.Vtr[1] = 0xFFFF
			e.VtrClr()
			Expect(r.Vtr[0]).To(Equal(uint16(0)))
			Expect(r.Vtr[1]).To(Equal(uint16(0)))
		})
	})

	Describe("ProductToBus40", func() {
		It("projects the raw 33-bit product unshifted when ps is 0", func() {
			r.P0 = 0x1234
			Expect(r.ProductToBus40(0)).To(Equal(int64(0x1234)))
		})

		It("shifts left by 2 and sign-extends when ps is 3", func() {
			r.P1 = -1
			r.Ps[1] = 3
			Expect(r.ProductToBus40(1)).To(Equal(int64(-1)))
		})
	})

	Describe("Cbs", func() {
		It("takes the GE branch, latches mixp and performs the documented asymmetric swap", func() {
			r.X1 = 7
			r.Y1 = 9
			r.P0 = 100
			r.P1 = 50
			e.Cbs(3, 4, 0x55, ame.CbsGe)
			Expect(r.Mixp).To(Equal(int32(0x55)))
			Expect(r.X0).To(Equal(int16(9))) // x0 = old y1
			Expect(r.X1).NotTo(Equal(int16(7)))
			Expect(r.Y1).To(Equal(int16(4))) // y1 loaded with v
		})

		It("does not latch mixp or swap on a failing GT condition", func() {
			r.Mixp = 0x11
			r.X0, r.X1 = 1, 2
			r.P0 = 10
			r.P1 = 10 // diff == 0, GT fails
			e.Cbs(3, 4, 0x55, ame.CbsGt)
			Expect(r.Mixp).To(Equal(int32(0x11)))
		})
	})
})
