package agu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/teakcore/agu"
	"github.com/sarchlab/teakcore/regs"
)

var _ = Describe("Unit", func() {
	var (
		r *regs.File
		u *agu.Unit
	)

	BeforeEach(func() {
		r = regs.New()
		u = agu.New(r)
	})

	Describe("RnAndModify", func() {
		It("returns the current address and leaves it unchanged for StepNone", func() {
			r.R[0] = 10
			got := u.RnAndModify(0, agu.StepNone)
			Expect(got).To(Equal(uint16(10)))
			Expect(r.R[0]).To(Equal(uint16(10)))
		})

		It("post-increments for StepInc", func() {
			r.R[0] = 10
			got := u.RnAndModify(0, agu.StepInc)
			Expect(got).To(Equal(uint16(10)))
			Expect(r.R[0]).To(Equal(uint16(11)))
		})

		It("post-decrements for StepDec", func() {
			r.R[0] = 10
			u.RnAndModify(0, agu.StepDec)
			Expect(r.R[0]).To(Equal(uint16(9)))
		})

		It("steps by the i-unit step register for StepStep", func() {
			r.R[0] = 10
			r.StepI = 3
			u.RnAndModify(0, agu.StepStep)
			Expect(r.R[0]).To(Equal(uint16(13)))
		})

		It("wraps within the modulo window when m and modi are set", func() {
			r.R[0] = 7
			r.M[0] = true
			r.ModI = 7 // window size 8: addresses 0..7
			u.Dialect = agu.ModDialectLegacy
			u.RnAndModify(0, agu.StepInc)
			Expect(r.R[0]).To(Equal(uint16(0)))
		})

		It("returns the bit-reverse of rn when brv is set and m is not", func() {
			r.R[0] = 0x0001 // ...0000_0001
			r.Brv[0] = true
			got := u.RnAndModify(0, agu.StepNone)
			Expect(got).To(Equal(uint16(0x8000)))
			Expect(r.R[0]).To(Equal(uint16(0x0001))) // stored value unaffected
		})

		It("ignores brv when m is also set", func() {
			r.R[0] = 0x0001
			r.Brv[0] = true
			r.M[0] = true
			got := u.RnAndModify(0, agu.StepNone)
			Expect(got).To(Equal(uint16(0x0001)))
		})
	})

	Describe("Bitrev family", func() {
		It("reverses the stored register value in place", func() {
			r.R[3] = 0x0001
			u.Bitrev(3)
			Expect(r.R[3]).To(Equal(uint16(0x8000)))
		})

		It("reverses and clears the bit-reverse-enable flag for bitrev_dbrv", func() {
			r.R[3] = 0x0001
			r.Brv[3] = true
			u.BitrevDbrv(3)
			Expect(r.R[3]).To(Equal(uint16(0x8000)))
			Expect(r.Brv[3]).To(BeFalse())
		})

		It("reverses and sets the bit-reverse-enable flag for bitrev_ebrv", func() {
			r.R[3] = 0x0001
			u.BitrevEbrv(3)
			Expect(r.R[3]).To(Equal(uint16(0x8000)))
			Expect(r.Brv[3]).To(BeTrue())
		})
	})

	Describe("ArpPair", func() {
		It("selects r0-r3 for the i-unit", func() {
			r.Arp[0] = 2
			Expect(u.ArpPair(0)).To(Equal(2))
		})

		It("selects r4-r7 for the j-unit", func() {
			r.Arp[1] = 1
			Expect(u.ArpPair(1)).To(Equal(5))
		})
	})
})
