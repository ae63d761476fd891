package opcode

// Type classifies an operation by the effect it has on control flow and the
// CPU walker, independent of addressing mode.
type Type int

const (
	Other Type = iota
	Branch
	Call
	Interrupt
	Jump
	Pop
	Push
	Return
	SepRep
)

var opTypes = map[Op]Type{
	BCC: Branch, BCS: Branch, BEQ: Branch, BMI: Branch, BNE: Branch,
	BPL: Branch, BVC: Branch, BVS: Branch,

	JSR: Call, JSL: Call,

	BRK: Interrupt,

	JMP: Jump, JML: Jump, BRA: Jump, BRL: Jump,

	RTS: Return, RTL: Return, RTI: Return,

	SEP: SepRep, REP: SepRep,

	PLA: Pop, PLB: Pop, PLD: Pop, PLP: Pop, PLX: Pop, PLY: Pop,

	PEA: Push, PEI: Push, PER: Push, PHA: Push, PHB: Push, PHD: Push,
	PHK: Push, PHP: Push, PHX: Push, PHY: Push,
}

// TypeOf returns op's control-flow classification. Operations absent from
// the table are Other: they neither branch, call, jump, return, push, pop,
// interrupt, nor alter m/x via SEP/REP.
func TypeOf(op Op) Type {
	if t, ok := opTypes[op]; ok {
		return t
	}
	return Other
}

// IsControl reports whether op transfers control rather than merely
// referencing an address (used when resolving an absolute operand: only
// control-transfer instructions combine it with the instruction's own bank).
func IsControl(op Op) bool {
	switch TypeOf(op) {
	case Branch, Call, Jump, Return:
		return true
	default:
		return false
	}
}
