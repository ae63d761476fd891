package opcode

// Entry is one row of the static opcode table: the operation and addressing
// mode a single opcode byte decodes to.
type Entry struct {
	Op   Op
	Mode Mode
}

// table maps every one of the 256 opcode byte values to its Entry. Unlike
// the 6502, the 65816's table has no illegal/undefined opcodes: WDM (0x42)
// is a reserved two-byte NOP and COP (0x02) is a software interrupt, both
// legal encodings.
var table = [256]Entry{
	0x00: {BRK, Immediate8},
	0x01: {ORA, DirectPageIndexedIndirect},
	0x02: {COP, Immediate8},
	0x03: {ORA, StackRelative},
	0x04: {TSB, DirectPage},
	0x05: {ORA, DirectPage},
	0x06: {ASL, DirectPage},
	0x07: {ORA, DirectPageIndirectLong},
	0x08: {PHP, Implied},
	0x09: {ORA, ImmediateM},
	0x0A: {ASL, ImpliedAccumulator},
	0x0B: {PHD, Implied},
	0x0C: {TSB, Absolute},
	0x0D: {ORA, Absolute},
	0x0E: {ASL, Absolute},
	0x0F: {ORA, AbsoluteLong},

	0x10: {BPL, Relative},
	0x11: {ORA, DirectPageIndirectIndexed},
	0x12: {ORA, DirectPageIndirect},
	0x13: {ORA, StackRelativeIndirectIndexed},
	0x14: {TRB, DirectPage},
	0x15: {ORA, DirectPageIndexedX},
	0x16: {ASL, DirectPageIndexedX},
	0x17: {ORA, DirectPageIndirectIndexedLong},
	0x18: {CLC, Implied},
	0x19: {ORA, AbsoluteIndexedY},
	0x1A: {INC, ImpliedAccumulator},
	0x1B: {TCS, Implied},
	0x1C: {TRB, Absolute},
	0x1D: {ORA, AbsoluteIndexedX},
	0x1E: {ASL, AbsoluteIndexedX},
	0x1F: {ORA, AbsoluteIndexedLong},

	0x20: {JSR, Absolute},
	0x21: {AND, DirectPageIndexedIndirect},
	0x22: {JSL, AbsoluteLong},
	0x23: {AND, StackRelative},
	0x24: {BIT, DirectPage},
	0x25: {AND, DirectPage},
	0x26: {ROL, DirectPage},
	0x27: {AND, DirectPageIndirectLong},
	0x28: {PLP, Implied},
	0x29: {AND, ImmediateM},
	0x2A: {ROL, ImpliedAccumulator},
	0x2B: {PLD, Implied},
	0x2C: {BIT, Absolute},
	0x2D: {AND, Absolute},
	0x2E: {ROL, Absolute},
	0x2F: {AND, AbsoluteLong},

	0x30: {BMI, Relative},
	0x31: {AND, DirectPageIndirectIndexed},
	0x32: {AND, DirectPageIndirect},
	0x33: {AND, StackRelativeIndirectIndexed},
	0x34: {BIT, DirectPageIndexedX},
	0x35: {AND, DirectPageIndexedX},
	0x36: {ROL, DirectPageIndexedX},
	0x37: {AND, DirectPageIndirectIndexedLong},
	0x38: {SEC, Implied},
	0x39: {AND, AbsoluteIndexedY},
	0x3A: {DEC, ImpliedAccumulator},
	0x3B: {TSC, Implied},
	0x3C: {BIT, AbsoluteIndexedX},
	0x3D: {AND, AbsoluteIndexedX},
	0x3E: {ROL, AbsoluteIndexedX},
	0x3F: {AND, AbsoluteIndexedLong},

	0x40: {RTI, Implied},
	0x41: {EOR, DirectPageIndexedIndirect},
	0x42: {WDM, Immediate8},
	0x43: {EOR, StackRelative},
	0x44: {MVP, Move},
	0x45: {EOR, DirectPage},
	0x46: {LSR, DirectPage},
	0x47: {EOR, DirectPageIndirectLong},
	0x48: {PHA, Implied},
	0x49: {EOR, ImmediateM},
	0x4A: {LSR, ImpliedAccumulator},
	0x4B: {PHK, Implied},
	0x4C: {JMP, Absolute},
	0x4D: {EOR, Absolute},
	0x4E: {LSR, Absolute},
	0x4F: {EOR, AbsoluteLong},

	0x50: {BVC, Relative},
	0x51: {EOR, DirectPageIndirectIndexed},
	0x52: {EOR, DirectPageIndirect},
	0x53: {EOR, StackRelativeIndirectIndexed},
	0x54: {MVN, Move},
	0x55: {EOR, DirectPageIndexedX},
	0x56: {LSR, DirectPageIndexedX},
	0x57: {EOR, DirectPageIndirectIndexedLong},
	0x58: {CLI, Implied},
	0x59: {EOR, AbsoluteIndexedY},
	0x5A: {PHY, Implied},
	0x5B: {TCD, Implied},
	0x5C: {JML, AbsoluteLong},
	0x5D: {EOR, AbsoluteIndexedX},
	0x5E: {LSR, AbsoluteIndexedX},
	0x5F: {EOR, AbsoluteIndexedLong},

	0x60: {RTS, Implied},
	0x61: {ADC, DirectPageIndexedIndirect},
	0x62: {PER, RelativeLong},
	0x63: {ADC, StackRelative},
	0x64: {STZ, DirectPage},
	0x65: {ADC, DirectPage},
	0x66: {ROR, DirectPage},
	0x67: {ADC, DirectPageIndirectLong},
	0x68: {PLA, Implied},
	0x69: {ADC, ImmediateM},
	0x6A: {ROR, ImpliedAccumulator},
	0x6B: {RTL, Implied},
	0x6C: {JMP, AbsoluteIndirect},
	0x6D: {ADC, Absolute},
	0x6E: {ROR, Absolute},
	0x6F: {ADC, AbsoluteLong},

	0x70: {BVS, Relative},
	0x71: {ADC, DirectPageIndirectIndexed},
	0x72: {ADC, DirectPageIndirect},
	0x73: {ADC, StackRelativeIndirectIndexed},
	0x74: {STZ, DirectPageIndexedX},
	0x75: {ADC, DirectPageIndexedX},
	0x76: {ROR, DirectPageIndexedX},
	0x77: {ADC, DirectPageIndirectIndexedLong},
	0x78: {SEI, Implied},
	0x79: {ADC, AbsoluteIndexedY},
	0x7A: {PLY, Implied},
	0x7B: {TDC, Implied},
	0x7C: {JMP, AbsoluteIndexedIndirect},
	0x7D: {ADC, AbsoluteIndexedX},
	0x7E: {ROR, AbsoluteIndexedX},
	0x7F: {ADC, AbsoluteIndexedLong},

	0x80: {BRA, Relative},
	0x81: {STA, DirectPageIndexedIndirect},
	0x82: {BRL, RelativeLong},
	0x83: {STA, StackRelative},
	0x84: {STY, DirectPage},
	0x85: {STA, DirectPage},
	0x86: {STX, DirectPage},
	0x87: {STA, DirectPageIndirectLong},
	0x88: {DEY, Implied},
	0x89: {BIT, ImmediateM},
	0x8A: {TXA, Implied},
	0x8B: {PHB, Implied},
	0x8C: {STY, Absolute},
	0x8D: {STA, Absolute},
	0x8E: {STX, Absolute},
	0x8F: {STA, AbsoluteLong},

	0x90: {BCC, Relative},
	0x91: {STA, DirectPageIndirectIndexed},
	0x92: {STA, DirectPageIndirect},
	0x93: {STA, StackRelativeIndirectIndexed},
	0x94: {STY, DirectPageIndexedX},
	0x95: {STA, DirectPageIndexedX},
	0x96: {STX, DirectPageIndexedY},
	0x97: {STA, DirectPageIndirectIndexedLong},
	0x98: {TYA, Implied},
	0x99: {STA, AbsoluteIndexedY},
	0x9A: {TXS, Implied},
	0x9B: {TXY, Implied},
	0x9C: {STZ, Absolute},
	0x9D: {STA, AbsoluteIndexedX},
	0x9E: {STZ, AbsoluteIndexedX},
	0x9F: {STA, AbsoluteIndexedLong},

	0xA0: {LDY, ImmediateX},
	0xA1: {LDA, DirectPageIndexedIndirect},
	0xA2: {LDX, ImmediateX},
	0xA3: {LDA, StackRelative},
	0xA4: {LDY, DirectPage},
	0xA5: {LDA, DirectPage},
	0xA6: {LDX, DirectPage},
	0xA7: {LDA, DirectPageIndirectLong},
	0xA8: {TAY, Implied},
	0xA9: {LDA, ImmediateM},
	0xAA: {TAX, Implied},
	0xAB: {PLB, Implied},
	0xAC: {LDY, Absolute},
	0xAD: {LDA, Absolute},
	0xAE: {LDX, Absolute},
	0xAF: {LDA, AbsoluteLong},

	0xB0: {BCS, Relative},
	0xB1: {LDA, DirectPageIndirectIndexed},
	0xB2: {LDA, DirectPageIndirect},
	0xB3: {LDA, StackRelativeIndirectIndexed},
	0xB4: {LDY, DirectPageIndexedX},
	0xB5: {LDA, DirectPageIndexedX},
	0xB6: {LDX, DirectPageIndexedY},
	0xB7: {LDA, DirectPageIndirectIndexedLong},
	0xB8: {CLV, Implied},
	0xB9: {LDA, AbsoluteIndexedY},
	0xBA: {TSX, Implied},
	0xBB: {TYX, Implied},
	0xBC: {LDY, AbsoluteIndexedX},
	0xBD: {LDA, AbsoluteIndexedX},
	0xBE: {LDX, AbsoluteIndexedY},
	0xBF: {LDA, AbsoluteIndexedLong},

	0xC0: {CPY, ImmediateX},
	0xC1: {CMP, DirectPageIndexedIndirect},
	0xC2: {REP, Immediate8},
	0xC3: {CMP, StackRelative},
	0xC4: {CPY, DirectPage},
	0xC5: {CMP, DirectPage},
	0xC6: {DEC, DirectPage},
	0xC7: {CMP, DirectPageIndirectLong},
	0xC8: {INY, Implied},
	0xC9: {CMP, ImmediateM},
	0xCA: {DEX, Implied},
	0xCB: {WAI, Implied},
	0xCC: {CPY, Absolute},
	0xCD: {CMP, Absolute},
	0xCE: {DEC, Absolute},
	0xCF: {CMP, AbsoluteLong},

	0xD0: {BNE, Relative},
	0xD1: {CMP, DirectPageIndirectIndexed},
	0xD2: {CMP, DirectPageIndirect},
	0xD3: {CMP, StackRelativeIndirectIndexed},
	0xD4: {PEI, PeiDirectPageIndirect},
	0xD5: {CMP, DirectPageIndexedX},
	0xD6: {DEC, DirectPageIndexedX},
	0xD7: {CMP, DirectPageIndirectIndexedLong},
	0xD8: {CLD, Implied},
	0xD9: {CMP, AbsoluteIndexedY},
	0xDA: {PHX, Implied},
	0xDB: {STP, Implied},
	0xDC: {JML, AbsoluteIndirectLong},
	0xDD: {CMP, AbsoluteIndexedX},
	0xDE: {DEC, AbsoluteIndexedX},
	0xDF: {CMP, AbsoluteIndexedLong},

	0xE0: {CPX, ImmediateX},
	0xE1: {SBC, DirectPageIndexedIndirect},
	0xE2: {SEP, Immediate8},
	0xE3: {SBC, StackRelative},
	0xE4: {CPX, DirectPage},
	0xE5: {SBC, DirectPage},
	0xE6: {INC, DirectPage},
	0xE7: {SBC, DirectPageIndirectLong},
	0xE8: {INX, Implied},
	0xE9: {SBC, ImmediateM},
	0xEA: {NOP, Implied},
	0xEB: {XBA, Implied},
	0xEC: {CPX, Absolute},
	0xED: {SBC, Absolute},
	0xEE: {INC, Absolute},
	0xEF: {SBC, AbsoluteLong},

	0xF0: {BEQ, Relative},
	0xF1: {SBC, DirectPageIndirectIndexed},
	0xF2: {SBC, DirectPageIndirect},
	0xF3: {SBC, StackRelativeIndirectIndexed},
	0xF4: {PEA, StackAbsolute},
	0xF5: {SBC, DirectPageIndexedX},
	0xF6: {INC, DirectPageIndexedX},
	0xF7: {SBC, DirectPageIndirectIndexedLong},
	0xF8: {SED, Implied},
	0xF9: {SBC, AbsoluteIndexedY},
	0xFA: {PLX, Implied},
	0xFB: {XCE, Implied},
	0xFC: {JSR, AbsoluteIndexedIndirect},
	0xFD: {SBC, AbsoluteIndexedX},
	0xFE: {INC, AbsoluteIndexedX},
	0xFF: {SBC, AbsoluteIndexedLong},
}

// Lookup returns the Entry for opcode byte b.
func Lookup(b byte) Entry {
	return table[b]
}
