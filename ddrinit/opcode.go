package ddrinit

import (
	"fmt"
	"strings"
)

// An Opcode is the set of control lines asserted by a command. Bits of the
// negated lines are set when the line is driven low.
type Opcode uint32

// Control lines.
const (
	CKE  Opcode = 1 << 0
	CSn  Opcode = 1 << 1
	RASn Opcode = 1 << 2
	CASn Opcode = 1 << 3
	WEn  Opcode = 1 << 4
)

// Commands used during initialization.
const (
	PRE  = CKE | CASn
	REF  = CKE | WEn
	MOD  = CKE
	ZQCL = CKE | RASn | CASn
)

var opcodeNames = map[Opcode]string{
	PRE:  "PRE",
	REF:  "REF",
	MOD:  "MOD",
	ZQCL: "ZQCL",
}

var lineNames = []struct {
	line Opcode
	name string
}{
	{CKE, "CKE"},
	{CSn, "CSn"},
	{RASn, "RASn"},
	{CASn, "CASn"},
	{WEn, "WEn"},
}

// Known tells if the opcode is one of the commands the controller executes.
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// Has tells if all the given lines are part of the opcode.
func (o Opcode) Has(lines Opcode) bool {
	return o&lines == lines
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}

	var parts []string
	for _, l := range lineNames {
		if o.Has(l.line) {
			parts = append(parts, l.name)
		}
	}

	if len(parts) == 0 {
		return fmt.Sprintf("Opcode(0x%x)", uint32(o))
	}

	return strings.Join(parts, "|")
}
