package insts

// Family codes occupy bits [15:10] of the first opcode word.
const (
	famNop uint16 = iota
	famAlmAccAcc
	famAlmAccImm
	famAlbAccAcc
	famModaUnary
	famMpy
	famMac
	famMaa
	famMsu
	famMovImmAcc
	famMovImmReg
	famMovRegReg
	famMovMemReg
	famMovRegMem
	famShfc
	famShfi
	famMaxMin
	famExp
	famBr
	famBrr
	famCall
	famCallr
	famRet
	famReti
	famRetd
	famBreak
	famRep
	famBkrep
	famBkrepsto
	famBkreprst
	famBanke
	famBankr
	famSwap
	famCntxS
	famCntxR
	famDint
	famEint
	famPush
	famPop
	famPusha
	famPopa

	famCbs
	famVtrExtrema
	famVtrReg
	famBitrev
	famArp
)

const familyShift = 10
const familyMask = 0x3F

func family(word uint16) uint16 {
	return (word >> familyShift) & familyMask
}

func fields10(word uint16) uint16 {
	return word & 0x3FF
}

// Decoder decodes a stream of 16-bit words into Instructions, consuming
// a second expansion word when the family requires one.
type Decoder struct{}

// NewDecoder returns a ready-to-use Decoder. Teak's decode table has no
// persistent state (unlike a JIT's block cache), so every Decoder value
// behaves identically; NewDecoder exists to mirror the teacher's
// constructor-per-unit convention.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the instruction at words[0], consuming words[1] as an
// expansion word if that family requires one. It never reads past
// len(words); callers must ensure a fatal PCOverflow is raised by the
// caller (core.Core) rather than by the decoder running off the stream.
func (d *Decoder) Decode(words []uint16) *Instruction {
	if len(words) == 0 {
		return &Instruction{Op: OpUndefinedFamily, Format: FormatUnknown, Length: 1}
	}
	word := words[0]
	fam := family(word)
	bits := fields10(word)

	fn, ok := decodeTable[fam]
	if !ok {
		return &Instruction{Op: OpUndefinedFamily, Format: FormatUnknown, Length: 1}
	}
	return fn(bits, words)
}

type decodeFn func(bits uint16, words []uint16) *Instruction

var decodeTable map[uint16]decodeFn

func init() {
	decodeTable = map[uint16]decodeFn{
		famNop:       decodeNop,
		famAlmAccAcc: decodeAlmAccAcc,
		famAlmAccImm: decodeAlmAccImm,
		famAlbAccAcc: decodeAlbAccAcc,
		famModaUnary: decodeModaUnary,
		famMpy:       decodeMpy,
		famMac:       decodeMac,
		famMaa:       decodeMaa,
		famMsu:       decodeMsu,
		famMovImmAcc: decodeMovImmAcc,
		famMovImmReg: decodeMovImmReg,
		famMovRegReg: decodeMovRegReg,
		famMovMemReg: decodeMovMemReg,
		famMovRegMem: decodeMovRegMem,
		famShfc:      decodeShfc,
		famShfi:      decodeShfi,
		famMaxMin:    decodeMaxMin,
		famExp:       decodeExp,
		famBr:        decodeBr,
		famBrr:       decodeBrr,
		famCall:      decodeCall,
		famCallr:     decodeCallr,
		famRet:       decodeRet,
		famReti:      decodeReti,
		famRetd:      decodeRetd,
		famBreak:     decodeBreak,
		famRep:       decodeRep,
		famBkrep:     decodeBkrep,
		famBkrepsto:  decodeBkrepsto,
		famBkreprst:  decodeBkreprst,
		famBanke:     decodeBanke,
		famBankr:     decodeBankr,
		famSwap:      decodeSwap,
		famCntxS:     decodeCntxS,
		famCntxR:     decodeCntxR,
		famDint:      decodeDint,
		famEint:      decodeEint,
		famPush:      decodePush,
		famPop:       decodePop,
		famPusha:     decodePusha,
		famPopa:      decodePopa,

		famCbs:        decodeCbs,
		famVtrExtrema: decodeVtrExtrema,
		famVtrReg:     decodeVtrReg,
		famBitrev:     decodeBitrev,
		famArp:        decodeArp,
	}
}

// almOps maps the alm sub-opcode (bits 9:7) to an Op.
var almOps = [8]Op{OpAdd, OpSub, OpCmp, OpAnd, OpOr, OpXor, OpTst0, OpTst1}

func accUnit(bits uint16) AccUnit { return AccUnit(bits & 0x3) }
func stepMode(bits uint16) StepMode { return StepMode((bits >> 2) & 0x3) }
func rnField(bits uint16) uint8 { return uint8((bits >> 4) & 0x7) }

func decodeNop(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpNop, Format: FormatNoOperand, Length: 1}
}

func decodeAlmAccAcc(bits uint16, words []uint16) *Instruction {
	op := almOps[(bits>>7)&0x7]
	return &Instruction{
		Op: op, Format: FormatAccAcc,
		Acc: accUnit(bits), Rn: rnField(bits), Step: stepMode(bits),
		Length: 1,
	}
}

func decodeAlmAccImm(bits uint16, words []uint16) *Instruction {
	op := almOps[(bits>>7)&0x7]
	inst := &Instruction{Op: op, Format: FormatAccImm, Acc: accUnit(bits), Length: 1}
	if len(words) > 1 {
		inst.Imm16 = words[1]
		inst.Has16 = true
		inst.Length = 2
	} else {
		inst.Imm8 = uint8(bits >> 2)
	}
	return inst
}

var albOps = [4]Op{OpSet, OpRst, OpChng, OpTstbAlb}

func decodeAlbAccAcc(bits uint16, words []uint16) *Instruction {
	op := albOps[(bits>>7)&0x3]
	return &Instruction{
		Op: op, Format: FormatAccAcc,
		Acc: accUnit(bits), Rn: rnField(bits), Step: stepMode(bits),
		Imm8: uint8(bits >> 2 & 0xF), Length: 1,
	}
}

var modaOps = [15]Op{OpShr, OpShr4, OpShl, OpShl4, OpRor, OpRol, OpClr, OpNot,
	OpNeg, OpRnd, OpPacr, OpClrr, OpInc, OpDec, OpCopy}

func decodeModaUnary(bits uint16, words []uint16) *Instruction {
	idx := (bits >> 4) & 0xF
	if int(idx) >= len(modaOps) {
		return &Instruction{Op: OpUndefinedFamily, Format: FormatUnknown, Length: 1}
	}
	return &Instruction{
		Op: modaOps[idx], Format: FormatAccUnary,
		Acc: accUnit(bits), Cond: Cond((bits >> 2) & 0x3), Length: 1,
	}
}

func decodeMpy(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpMpy, Format: FormatAccAcc, Rn: rnField(bits), Step: stepMode(bits), Length: 1}
}
func decodeMac(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpMac, Format: FormatAccAcc, Acc: accUnit(bits), Rn: rnField(bits), Step: stepMode(bits), Length: 1}
}
func decodeMaa(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpMaa, Format: FormatAccAcc, Acc: accUnit(bits), Rn: rnField(bits), Step: stepMode(bits), Length: 1}
}
func decodeMsu(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpMsu, Format: FormatAccAcc, Acc: accUnit(bits), Rn: rnField(bits), Step: stepMode(bits), Length: 1}
}

func decodeMovImmAcc(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpMovImmToAcc, Format: FormatAccImm, Acc: accUnit(bits), Length: 1}
	if len(words) > 1 {
		inst.Imm16 = words[1]
		inst.Has16 = true
		inst.Length = 2
	}
	return inst
}

func decodeMovImmReg(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpMovImmToReg, Format: FormatImmToReg, Length: 1}
	inst.Reg = regMnemonic(bits & 0xF)
	if len(words) > 1 {
		inst.Imm16 = words[1]
		inst.Has16 = true
		inst.Length = 2
	}
	return inst
}

func decodeMovRegReg(bits uint16, words []uint16) *Instruction {
	return &Instruction{
		Op: OpMovRegToReg, Format: FormatRegToReg,
		Reg: regMnemonic(bits & 0xF), Reg2: regMnemonic((bits >> 4) & 0xF),
		Length: 1,
	}
}

func decodeMovMemReg(bits uint16, words []uint16) *Instruction {
	return &Instruction{
		Op: OpMovMemToReg, Format: FormatAccMem,
		Reg: regMnemonic(bits & 0xF), Rn: rnField(bits >> 4), Step: stepMode(bits >> 7),
		Length: 1,
	}
}

func decodeMovRegMem(bits uint16, words []uint16) *Instruction {
	return &Instruction{
		Op: OpMovRegToMem, Format: FormatAccMem,
		Reg: regMnemonic(bits & 0xF), Rn: rnField(bits >> 4), Step: stepMode(bits >> 7),
		Length: 1,
	}
}

func decodeShfc(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpShfc, Format: FormatAccUnary, Acc: accUnit(bits), Length: 1}
}
func decodeShfi(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpShfi, Format: FormatAccUnary, Acc: accUnit(bits), Imm8: uint8(bits >> 2), Length: 1}
}

var maxMinOps = [4]Op{OpMaxGe, OpMaxGt, OpMinLe, OpMinLt}

func decodeMaxMin(bits uint16, words []uint16) *Instruction {
	op := maxMinOps[(bits>>8)&0x3]
	return &Instruction{Op: op, Format: FormatAccAcc, Acc: accUnit(bits), Step: stepMode(bits >> 2), Length: 1}
}

func decodeExp(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpExp, Format: FormatAccUnary, Acc: accUnit(bits), Length: 1}
}

func decodeBr(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpBr, Format: FormatBranch, Cond: Cond(bits & 0xF), Length: 1}
	if len(words) > 1 {
		inst.AbsAddr = uint32(words[1]) | uint32(bits>>4&0x3)<<16
		inst.Length = 2
	}
	return inst
}

func decodeBrr(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBrr, Format: FormatBranchRel, Cond: Cond(bits & 0xF), RelOffset: int8(int16(bits<<8) >> 9), Length: 1}
}

func decodeCall(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpCall, Format: FormatBranch, Cond: Cond(bits & 0xF), Length: 1}
	if len(words) > 1 {
		inst.AbsAddr = uint32(words[1]) | uint32(bits>>4&0x3)<<16
		inst.Length = 2
	}
	return inst
}

func decodeCallr(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpCallr, Format: FormatBranchRel, Cond: Cond(bits & 0xF), RelOffset: int8(int16(bits<<8) >> 9), Length: 1}
}

func decodeRet(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpRet, Format: FormatNoOperand, Cond: Cond(bits & 0xF), Length: 1}
}
func decodeReti(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpReti, Format: FormatNoOperand, Cond: Cond(bits & 0xF), Length: 1}
}
func decodeRetd(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpRetd, Format: FormatNoOperand, Length: 1}
}
func decodeBreak(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBreak, Format: FormatNoOperand, Length: 1}
}

func decodeRep(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpRep, Format: FormatRepeat, Length: 1}
	if bits&0x200 != 0 {
		inst.Reg = regMnemonic(bits & 0xF)
	} else {
		inst.Imm8 = uint8(bits & 0xFF)
	}
	return inst
}

func decodeBkrep(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpBkrep, Format: FormatRepeat, Length: 1}
	if bits&0x200 != 0 {
		inst.Reg = regMnemonic(bits & 0xF)
	} else {
		inst.Imm8 = uint8(bits & 0xFF)
	}
	if len(words) > 1 {
		inst.Imm16 = words[1]
		inst.Has16 = true
		inst.Length = 2
	}
	return inst
}

func decodeBkrepsto(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBkrepsto, Format: FormatStack, Rn: rnField(bits), Length: 1}
}
func decodeBkreprst(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBkreprst, Format: FormatStack, Rn: rnField(bits), Length: 1}
}

func decodeBanke(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBanke, Format: FormatBankSwap, Imm8: uint8(bits & 0xFF), Length: 1}
}
func decodeBankr(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpBankr, Format: FormatBankSwap, Imm8: uint8(bits & 0xFF), Length: 1}
}
func decodeSwap(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpSwap, Format: FormatBankSwap, Imm8: uint8(bits & 0xFF), Length: 1}
}
func decodeCntxS(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpCntxS, Format: FormatNoOperand, Length: 1}
}
func decodeCntxR(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpCntxR, Format: FormatNoOperand, Length: 1}
}
func decodeDint(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpDint, Format: FormatNoOperand, Length: 1}
}
func decodeEint(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpEint, Format: FormatNoOperand, Length: 1}
}

func decodePush(bits uint16, words []uint16) *Instruction {
	inst := &Instruction{Op: OpPush, Format: FormatStack, Reg: regMnemonic(bits & 0xF), Length: 1}
	if len(words) > 1 && bits&0x10 != 0 {
		inst.Imm16 = words[1]
		inst.Has16 = true
		inst.Length = 2
	}
	return inst
}
func decodePop(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpPop, Format: FormatStack, Reg: regMnemonic(bits & 0xF), Length: 1}
}
func decodePusha(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpPusha, Format: FormatStack, Acc: accUnit(bits), Length: 1}
}
func decodePopa(bits uint16, words []uint16) *Instruction {
	return &Instruction{Op: OpPopa, Format: FormatStack, Acc: accUnit(bits), Length: 1}
}

// decodeCbs decodes the codebook-search primitive: bit 8 selects the
// GE/GT condition, bits 7:6 select the primary half-accumulator
// (paired with its CounterAcc partner by core.execCbs).
func decodeCbs(bits uint16, words []uint16) *Instruction {
	op := OpCbsGe
	if bits&0x100 != 0 {
		op = OpCbsGt
	}
	return &Instruction{Op: op, Format: FormatAccAcc, Acc: accUnit(bits >> 6), Length: 1}
}

// decodeVtrExtrema decodes max2vtr/min2vtr: bit 8 selects min vs max,
// bits 7:6 select the primary accumulator (paired with its CounterAcc
// partner by core.execVtrExtrema).
func decodeVtrExtrema(bits uint16, words []uint16) *Instruction {
	op := OpMax2Vtr
	if bits&0x100 != 0 {
		op = OpMin2Vtr
	}
	return &Instruction{Op: op, Format: FormatAccAcc, Acc: accUnit(bits >> 6), Length: 1}
}

// decodeVtrReg decodes vtrclr/vtrmov: bits 9:8 select vtrclr (0) or
// vtrmov with mode bits 7:6 (0: vtr0, 1: vtr1, 2: combined), targeting
// accumulator bits 5:4 for vtrmov.
func decodeVtrReg(bits uint16, words []uint16) *Instruction {
	if (bits>>8)&0x3 == 0 {
		return &Instruction{Op: OpVtrClr, Format: FormatNoOperand, Length: 1}
	}
	return &Instruction{
		Op: OpVtrMov, Format: FormatAccUnary,
		Acc: accUnit(bits >> 4), Imm8: uint8((bits >> 6) & 0x3), Length: 1,
	}
}

// decodeBitrev decodes bitrev/bitrev_dbrv/bitrev_ebrv: bits 9:8 select
// the variant, bits 5:3 select the address register.
func decodeBitrev(bits uint16, words []uint16) *Instruction {
	ops := [3]Op{OpBitrev, OpBitrevDbrv, OpBitrevEbrv}
	idx := (bits >> 8) & 0x3
	if int(idx) >= len(ops) {
		return &Instruction{Op: OpUndefinedFamily, Format: FormatUnknown, Length: 1}
	}
	return &Instruction{Op: ops[idx], Format: FormatAccUnary, Rn: uint8((bits >> 3) & 0x7), Length: 1}
}

// decodeArp decodes the ARP dual-pointer combine family (add_add/
// add_sub/sub_add/sub_sub): bits 9:8 select the op, bits 7:6 select
// the destination accumulator.
func decodeArp(bits uint16, words []uint16) *Instruction {
	ops := [4]Op{OpArpAddAdd, OpArpAddSub, OpArpSubAdd, OpArpSubSub}
	op := ops[(bits>>8)&0x3]
	return &Instruction{Op: op, Format: FormatAccAcc, Acc: accUnit(bits >> 6), Length: 1}
}

var regMnemonics = []string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"a0h", "a1h", "b0h", "b1h", "x0", "x1", "y0", "y1",
}

func regMnemonic(bits uint16) string {
	idx := int(bits) & 0xF
	if idx < len(regMnemonics) {
		return regMnemonics[idx]
	}
	return "r0"
}
