// Package insts decodes the Teak 16-bit instruction stream into a
// structured Instruction, following the teacher's ARM64 decoder shape
// (classifier predicates feeding field-extraction functions, composed
// into a dispatch table) generalized to the Teak opcode families named
// in the core specification.
//
// The concrete bit layout here is invented, not reverse-engineered real
// Teak silicon: the specification this module implements explicitly
// treats the decode table's bit-layout as an implementation detail and
// excludes a disassembler from scope. Encoding: bits [15:10] select one
// of 64 instruction families; bits [9:0] hold family-specific operand
// fields; some families consume a second 16-bit expansion word for a
// full-width immediate or 18-bit address.
package insts

// Op identifies one decoded instruction's operation.
type Op uint16

const (
	OpUnknown Op = iota
	OpNop

	// Arithmetic / logic (alm family): acc = acc OP operand.
	OpAdd
	OpAddl
	OpAddh
	OpSub
	OpSubl
	OpSubh
	OpCmp
	OpCmpu
	OpAnd
	OpOr
	OpXor
	OpTst0
	OpTst1

	// Bit-test (alb family): bit-set/reset/change/test on accumulator.
	OpSet
	OpRst
	OpChng
	OpTstbAlb

	// moda / modb unary accumulator mutators.
	OpShr
	OpShr4
	OpShl
	OpShl4
	OpRor
	OpRol
	OpClr
	OpNot
	OpNeg
	OpRnd
	OpPacr
	OpClrr
	OpInc
	OpDec
	OpCopy

	// Multiply / MAC.
	OpMpy
	OpMac
	OpMaa
	OpMsu

	// Moves.
	OpMovImmToAcc
	OpMovImmToReg
	OpMovRegToReg
	OpMovMemToReg
	OpMovRegToMem

	// Shifts.
	OpShfc
	OpShfi

	// Extrema / exponent.
	OpMaxGe
	OpMaxGt
	OpMinLe
	OpMinLt
	OpExp

	// Control flow.
	OpBr
	OpBrr
	OpCall
	OpCallr
	OpRet
	OpRetCond
	OpReti
	OpRetic
	OpRetd
	OpBreak

	// Loop control.
	OpRep
	OpBkrep
	OpBkrepsto
	OpBkreprst

	// Register/bank management.
	OpBanke
	OpBankr
	OpSwap
	OpCntxS
	OpCntxR

	// Interrupt control.
	OpDint
	OpEint

	// Stack.
	OpPush
	OpPop
	OpPusha
	OpPopa

	// Codebook-search primitive.
	OpCbsGe
	OpCbsGt

	// Extrema-with-bit-vector (codebook-search support) and its
	// register-level read/clear counterparts.
	OpMax2Vtr
	OpMin2Vtr
	OpVtrClr
	OpVtrMov

	// Bit-reversed addressing register mutators.
	OpBitrev
	OpBitrevDbrv
	OpBitrevEbrv

	// ARP dual-pointer combine family.
	OpArpAddAdd
	OpArpAddSub
	OpArpSubAdd
	OpArpSubSub

	// Catch-all for decoded-but-unimplemented opcodes (Open Question 5).
	OpUndefinedFamily
)

// Format groups instructions by operand shape, mirroring the teacher's
// FormatXxx constants used to dispatch execution.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatNoOperand
	FormatAccAcc    // acc <- acc OP acc/operand, operand from Rn/StepZIDS or Register
	FormatAccImm    // acc <- acc OP imm8/imm16 (expansion word)
	FormatAccMem    // acc <-> memory via Rn+step or imm8 page-relative
	FormatAccUnary  // moda/modb: single accumulator, optional condition
	FormatImmToReg  // mov imm16 -> arbitrary register
	FormatRegToReg  // mov register -> register
	FormatBranch    // br/call: 18-bit absolute address (expansion word)
	FormatBranchRel // brr/callr: 7-bit relative offset
	FormatRepeat    // rep/bkrep: imm8 or register count
	FormatBankSwap  // banke/bankr/swap: bit-flag or unit selector operand
	FormatStack     // push/pop/pusha/popa
)

// StepMode mirrors agu.StepMode values for the Rn+StepZIDS operand
// class, duplicated here (rather than importing agu) to keep insts free
// of a dependency on the execution-side packages, matching the
// teacher's insts package depending on nothing but itself.
type StepMode uint8

const (
	StepZero StepMode = iota
	StepInc
	StepDec
	StepStep
)

// Cond enumerates the condition codes usable by br/brr/call/callr/ret/
// reti and the Moda conditional forms.
type Cond uint8

const (
	CondTrue Cond = iota
	CondEq
	CondNeq
	CondGt
	CondGe
	CondLt
	CondLe
	CondNn // not normalized / overflow-related forms
	CondC0
	CondC1
	CondV
	CondLv
)

// AccUnit indexes a0/a1/b0/b1 within an Instruction's operand fields.
type AccUnit uint8

const (
	AccA0 AccUnit = iota
	AccA1
	AccB0
	AccB1
)

// Instruction is the decoded form of one 16-bit opcode (plus optional
// expansion word).
type Instruction struct {
	Op     Op
	Format Format

	Acc    AccUnit // primary accumulator operand, when applicable
	AccB   AccUnit // secondary accumulator operand; no decoder here sets it (swap selects its pairing through Imm8)
	Rn     uint8   // address register index 0-7, when applicable
	Step   StepMode
	Cond   Cond
	Reg    string // generic register mnemonic for RegToBus16/RegFromBus16
	Reg2   string

	Imm8  uint8
	Imm16 uint16 // from the expansion word, when Has16 is set
	Has16 bool

	RelOffset int8   // brr/callr 7-bit signed relative offset
	AbsAddr   uint32 // br/call 18-bit absolute address (imm16 + hi bits)

	// Length in 16-bit words this instruction occupies in the stream
	// (1, or 2 when an expansion word was consumed).
	Length int
}
