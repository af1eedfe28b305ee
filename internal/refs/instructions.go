package refs

import (
	"strconv"
	"strings"
	"sync"
)

// Role classifies what an instruction does with one operand.
type Role uint8

const (
	Read Role = iota
	Write
	ReadWrite
	// Expression operands are parsed for tag paths, each of which is read.
	Expression
	// Ignore operands name routines, labels, object classes or literal modes.
	Ignore
)

func (r Role) String() string {
	switch r {
	case Read:
		return "Read"
	case Write:
		return "Write"
	case ReadWrite:
		return "ReadWrite"
	case Expression:
		return "Expression"
	case Ignore:
		return "Ignore"
	}
	return "Unknown"
}

// Signature gives the role of each operand position. Operands past the end
// of Roles take Rest. Bind, when set, derives the roles from the operands of
// the call, for instructions whose layout depends on an operand count.
type Signature struct {
	Roles []Role
	Rest  Role
	Bind  func(operands []string) Signature
}

// forCall returns the signature that applies to one call.
func (s Signature) forCall(operands []string) Signature {
	if s.Bind == nil {
		return s
	}
	return s.Bind(operands)
}

// RoleAt returns the role of operand i.
func (s Signature) RoleAt(i int) Role {
	if i < len(s.Roles) {
		return s.Roles[i]
	}
	return s.Rest
}

func sig(roles ...Role) Signature {
	return Signature{Roles: roles, Rest: Read}
}

// InstructionTable maps upper-case mnemonics to operand signatures.
// It is safe for concurrent use; Register may add vendor instructions.
type InstructionTable struct {
	mu      sync.RWMutex
	entries map[string]Signature
}

// NewInstructionTable returns an empty table.
func NewInstructionTable() *InstructionTable {
	return &InstructionTable{entries: make(map[string]Signature)}
}

// Register adds or replaces the signature for a mnemonic.
func (t *InstructionTable) Register(mnemonic string, s Signature) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[strings.ToUpper(mnemonic)] = s
}

// Lookup returns the signature for a mnemonic.
func (t *InstructionTable) Lookup(mnemonic string) (Signature, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[strings.ToUpper(mnemonic)]
	return s, ok
}

// Len returns the number of registered mnemonics.
func (t *InstructionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// DefaultInstructionTable covers the Logix 5000 ladder instruction set.
func DefaultInstructionTable() *InstructionTable {
	t := NewInstructionTable()

	// Bit
	for _, m := range []string{"XIC", "XIO"} {
		t.Register(m, sig(Read))
	}
	for _, m := range []string{"OTE", "OTL", "OTU"} {
		t.Register(m, sig(Write))
	}
	t.Register("ONS", sig(ReadWrite))
	t.Register("OSR", sig(ReadWrite, Write))
	t.Register("OSF", sig(ReadWrite, Write))

	// Timer and counter: the structure is read-modify-write; preset and
	// accumulator operands are display values.
	for _, m := range []string{"TON", "TOF", "RTO", "CTU", "CTD"} {
		t.Register(m, Signature{Roles: []Role{ReadWrite}, Rest: Ignore})
	}
	t.Register("RES", sig(Write))

	// Compare
	for _, m := range []string{"EQU", "NEQ", "LES", "LEQ", "GRT", "GEQ", "LIM", "MEQ"} {
		t.Register(m, sig(Read, Read, Read))
	}
	t.Register("CMP", sig(Expression))

	// Compute and math
	t.Register("CPT", sig(Write, Expression))
	for _, m := range []string{"ADD", "SUB", "MUL", "DIV", "MOD", "XPY", "AND", "OR", "XOR", "BAND", "BOR", "BXOR"} {
		t.Register(m, sig(Read, Read, Write))
	}
	for _, m := range []string{"NOT", "BNOT", "NEG", "ABS", "SQR", "SQRT", "LN", "LOG",
		"SIN", "COS", "TAN", "ASN", "ACS", "ATN", "DEG", "RAD", "TRN", "TOD", "FRD"} {
		t.Register(m, sig(Read, Write))
	}
	t.Register("SWPB", sig(Read, Ignore, Write))
	t.Register("CLR", sig(Write))

	// Move and copy
	t.Register("MOV", sig(Read, Write))
	t.Register("MVM", sig(Read, Read, Write))
	t.Register("BTD", sig(Read, Read, ReadWrite, Read, Read))
	t.Register("COP", sig(Read, Write, Read))
	t.Register("CPS", sig(Read, Write, Read))
	t.Register("FLL", sig(Read, Write, Read))

	// Array (file)
	t.Register("FAL", sig(ReadWrite, Read, Read, Ignore, Write, Expression))
	t.Register("FSC", sig(ReadWrite, Read, Read, Ignore, Expression))
	t.Register("AVE", sig(Read, Ignore, Write, ReadWrite, Read, Read))
	t.Register("STD", sig(Read, Ignore, Write, ReadWrite, Read, Read))
	t.Register("SRT", sig(ReadWrite, Ignore, ReadWrite, Read, Read))
	t.Register("SIZE", sig(Read, Ignore, Write))

	// Shift and FIFO/LIFO
	t.Register("BSL", sig(ReadWrite, ReadWrite, Read, Read))
	t.Register("BSR", sig(ReadWrite, ReadWrite, Read, Read))
	t.Register("FFL", sig(Read, ReadWrite, ReadWrite, Read, Read))
	t.Register("LFL", sig(Read, ReadWrite, ReadWrite, Read, Read))
	t.Register("FFU", sig(ReadWrite, Write, ReadWrite, Read, Read))
	t.Register("LFU", sig(ReadWrite, Write, ReadWrite, Read, Read))

	// Sequencer
	t.Register("SQO", sig(Read, Read, ReadWrite, ReadWrite, Read, Read))
	t.Register("SQI", sig(Read, Read, Read, ReadWrite, Read, Read))
	t.Register("SQL", sig(Write, Read, ReadWrite, Read, Read))

	// Program control
	t.Register("JSR", Signature{Roles: []Role{Ignore, Ignore}, Rest: Write, Bind: bindJSR})
	t.Register("SBR", Signature{Rest: Write})
	t.Register("RET", Signature{Rest: Read})
	t.Register("JXR", Signature{Roles: []Role{Ignore}, Rest: Read})
	t.Register("FOR", sig(Ignore, ReadWrite, Read, Read, Read))
	for _, m := range []string{"JMP", "LBL", "EVENT"} {
		t.Register(m, Signature{Rest: Ignore})
	}
	for _, m := range []string{"TND", "MCR", "AFI", "NOP", "UID", "UIE", "BRK"} {
		t.Register(m, Signature{Rest: Ignore})
	}
	t.Register("IOT", sig(Read))
	t.Register("EOT", sig(Write))
	t.Register("SFR", sig(Ignore, Read))
	t.Register("SFP", sig(Ignore, Read))

	// System data: class, instance and attribute names are not tags.
	t.Register("GSV", sig(Ignore, Ignore, Ignore, Write))
	t.Register("SSV", sig(Ignore, Ignore, Ignore, Read))

	// Communication and process control
	t.Register("MSG", sig(ReadWrite))
	t.Register("PID", sig(ReadWrite, Read, Read, Write, Read, Read, Read))

	// ASCII and string
	t.Register("CONCAT", sig(Read, Read, Write))
	t.Register("MID", sig(Read, Read, Read, Write))
	t.Register("FIND", sig(Read, Read, Read, Write))
	t.Register("INSERT", sig(Read, Read, Read, Write))
	t.Register("DELETE", sig(Read, Read, Read, Write))
	for _, m := range []string{"DTOS", "STOD", "RTOS", "STOR", "UPPER", "LOWER"} {
		t.Register(m, sig(Read, Write))
	}
	t.Register("ARD", sig(Ignore, Write, ReadWrite, Read, Read))
	t.Register("ARL", sig(Ignore, Write, ReadWrite, Read, Read))
	t.Register("AWT", sig(Ignore, Read, ReadWrite, Read, Read))
	t.Register("AWA", sig(Ignore, Read, ReadWrite, Read, Read))
	t.Register("ABL", sig(Ignore, ReadWrite))
	t.Register("ACB", sig(Ignore, ReadWrite))
	t.Register("ACL", sig(Ignore, Ignore, Ignore))
	t.Register("AHL", sig(Ignore, Read, Read, ReadWrite))

	// Motion: axis and motion control structures are updated by the instruction.
	for _, m := range []string{"MSO", "MSF", "MASD", "MASR", "MAFR", "MAH", "MAS", "MAJ", "MAM", "MAG", "MCD", "MRP", "MAPC", "MATC"} {
		t.Register(m, Signature{Roles: []Role{ReadWrite, ReadWrite}, Rest: Read})
	}

	return t
}

// bindJSR splits JSR(Routine, InputCount, Input..., Return...) into input
// parameters, which are read, and return parameters, which the subroutine
// writes. Without a literal count every parameter is taken as a return
// parameter.
func bindJSR(operands []string) Signature {
	inputs := 0
	if len(operands) > 1 {
		if n, err := strconv.Atoi(strings.TrimSpace(operands[1])); err == nil && n > 0 {
			inputs = n
		}
	}
	roles := make([]Role, 0, 2+inputs)
	roles = append(roles, Ignore, Ignore)
	for i := 0; i < inputs; i++ {
		roles = append(roles, Read)
	}
	return Signature{Roles: roles, Rest: Write}
}
