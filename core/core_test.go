package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/teakcore/core"
	"github.com/sarchlab/teakcore/mif"
)

// The word-building helpers below assemble opcodes using this module's
// own invented 16-bit encoding (insts.Decoder): family selector in bits
// [15:10], family-specific fields in bits [9:0]. See insts/decoder.go.

func wordMovImmAcc(acc uint16) uint16 { return 9<<10 | acc }
func wordAddImmAcc(acc uint16) uint16 { return 2<<10 | acc }
func wordNop() uint16                 { return 0 }
func wordInc() uint16                 { return 4<<10 | 12<<4 }
func wordShr() uint16                 { return 4<<10 | 0<<4 }
func wordRep(imm8 uint16) uint16            { return 26<<10 | imm8 }
func wordBkrep(lc uint16) uint16            { return 27<<10 | lc }
func wordBrrAlways(offsetEnc uint16) uint16 { return 19<<10 | offsetEnc }
func wordCbs(cond, acc uint16) uint16       { return 41<<10 | cond<<8 | acc<<6 }
func wordVtrExtrema(min, acc uint16) uint16 { return 42<<10 | min<<8 | acc<<6 }
func wordBitrev(variant, rn uint16) uint16  { return 44<<10 | variant<<8 | rn<<3 }
func wordArpCombine(op, acc uint16) uint16  { return 45<<10 | op<<8 | acc<<6 }

func newCoreWithProgram(words []uint16, dataWords int) (*core.Core, *mif.Memory) {
	mem := mif.NewMemory(dataWords, len(words)+1)
	mem.LoadProgram(words)
	c := core.New(core.WithMemoryInterface(mem))
	return c, mem
}

var _ = Describe("Core", func() {
	Describe("Run", func() {
		It("adds two immediates into a0 (AddSub basic)", func() {
			words := []uint16{
				wordMovImmAcc(0), 5,
				wordAddImmAcc(0), 3,
			}
			c, _ := newCoreWithProgram(words, 16)
			Expect(c.Run(2)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(8)))
		})

		It("clamps to the 32-bit range and sets FLS when the unit's saturation arm is set", func() {
			c, _ := newCoreWithProgram([]uint16{wordAddImmAcc(0), 4}, 16)
			c.Regs.A0 = 0x7FFFFFFE
			c.Regs.Sar[0] = true
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(1)<<31 - 1))
			Expect(c.Regs.FLS).To(BeTrue())
		})

		It("shifts a0 right arithmetically", func() {
			c, _ := newCoreWithProgram([]uint16{wordShr()}, 16)
			c.Regs.A0 = -8
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(-4)))
		})

		It("executes the following instruction repc+1 times for a single-instruction repeat", func() {
			words := []uint16{wordRep(2), wordInc()}
			c, _ := newCoreWithProgram(words, 16)
			Expect(c.Run(4)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(3)))
			Expect(c.Regs.Rep).To(BeFalse())
			Expect(c.Regs.PC).To(Equal(uint32(2)))
		})

		It("repeats a single-instruction block lc+1 times then closes the frame", func() {
			words := []uint16{wordBkrep(1), 2, wordInc()}
			c, _ := newCoreWithProgram(words, 16)
			Expect(c.Run(3)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(2)))
			Expect(c.Regs.Bcn).To(Equal(uint8(0)))
			Expect(c.Regs.Lp).To(BeFalse())
			Expect(c.Regs.PC).To(Equal(uint32(3)))
		})

		It("delivers a pending interrupt to its vector address after the current cycle", func() {
			c, _ := newCoreWithProgram([]uint16{wordNop()}, 512)
			c.Regs.SP = 0x100
			c.Regs.IE = true
			c.Regs.Im[0] = true
			c.SignalInterrupt(0)

			Expect(c.Run(1)).To(Succeed())

			Expect(c.Regs.PC).To(Equal(uint32(0x0006)))
			Expect(c.Regs.IE).To(BeFalse())
			Expect(c.Regs.Ip[0]).To(BeFalse())

			returnAddr := c.PopPC()
			Expect(returnAddr).To(Equal(uint32(1)))
			Expect(c.Regs.SP).To(Equal(uint32(0x100)))
		})

		It("reports PCOverflow once pc reaches the 18-bit limit", func() {
			c, _ := newCoreWithProgram([]uint16{wordNop()}, 16)
			c.Regs.PC = (1 << 18) - 1
			err := c.Run(2)
			Expect(err).To(HaveOccurred())
			var fatal *core.FatalError
			Expect(errors.As(err, &fatal)).To(BeTrue())
			Expect(fatal.Kind).To(Equal(core.PCOverflow))
		})

		It("reports UndefinedInstruction for an unassigned opcode family", func() {
			c, _ := newCoreWithProgram([]uint16{63 << 10}, 16)
			err := c.Run(1)
			var fatal *core.FatalError
			Expect(errors.As(err, &fatal)).To(BeTrue())
			Expect(fatal.Kind).To(Equal(core.UndefinedInstruction))
		})

		It("closes a block-repeat frame based on the fetched pc even when its last instruction branches away", func() {
			// lc=0: the frame closes on its only iteration. The body
			// (at address 2) is an always-taken relative branch, which
			// overwrites pc itself; the bookkeeping still has to fire
			// (Bcn back to 0) because it is evaluated before execute,
			// not after.
			words := []uint16{wordBkrep(0), 2, wordBrrAlways(16)}
			c, _ := newCoreWithProgram(words, 16)
			Expect(c.Run(2)).To(Succeed())
			Expect(c.Regs.Bcn).To(Equal(uint8(0)))
			Expect(c.Regs.Lp).To(BeFalse())
			Expect(c.Regs.PC).To(Equal(uint32(11)))
		})

		It("drives the codebook-search primitive through to mixp", func() {
			c, _ := newCoreWithProgram([]uint16{wordCbs(0, 0)}, 16) // cbs_ge, acc a0
			c.Regs.P0 = 100
			c.Regs.P1 = 50 // diff = 50 >= 0, condition holds
			c.Regs.R[0] = 0x77
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.Mixp).To(Equal(int32(0x77)))
		})

		It("drives max2_vtr through to the primary accumulator only", func() {
			c, _ := newCoreWithProgram([]uint16{wordVtrExtrema(0, 0)}, 16) // max2_vtr, acc a0
			c.Regs.A0 = int64(5)<<16 | 3
			c.Regs.A1 = int64(2)<<16 | 9 // a0's CounterAcc partner
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(5)<<16 | 9))
			Expect(c.Regs.A1).To(Equal(int64(2)<<16 | 9)) // partner untouched
		})

		It("drives bitrev_ebrv through to the address register and its brv flag", func() {
			c, _ := newCoreWithProgram([]uint16{wordBitrev(2, 3)}, 16) // ebrv, r3
			c.Regs.R[3] = 0x0001
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.R[3]).To(Equal(uint16(0x8000)))
			Expect(c.Regs.Brv[3]).To(BeTrue())
		})

		It("drives the ARP add_add combine through to the destination accumulator", func() {
			c, mem := newCoreWithProgram([]uint16{wordArpCombine(0, 0)}, 16) // add_add, acc a0
			c.Regs.R[0] = 4                                                 // i-unit: arp[0]=0 -> r0
			c.Regs.R[4] = 5                                                 // j-unit: arp[1]=0 -> r4
			mem.DataWrite(4, 2)
			mem.DataWrite(5, 3)
			Expect(c.Run(1)).To(Succeed())
			Expect(c.Regs.A0).To(Equal(int64(5)<<16 | 5))
			Expect(c.Regs.R[0]).To(Equal(uint16(5))) // post-incremented
			Expect(c.Regs.R[4]).To(Equal(uint16(6)))
		})

		It("reports LoopStackOverflow when a fifth block-repeat frame is pushed", func() {
			words := []uint16{
				wordBkrep(5), 100,
				wordBkrep(5), 100,
				wordBkrep(5), 100,
				wordBkrep(5), 100,
				wordBkrep(5), 100,
			}
			c, _ := newCoreWithProgram(words, 16)
			err := c.Run(5)
			Expect(err).To(HaveOccurred())
			var fatal *core.FatalError
			Expect(errors.As(err, &fatal)).To(BeTrue())
			Expect(fatal.Kind).To(Equal(core.LoopStackOverflow))
		})
	})
})
