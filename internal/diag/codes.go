package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Регистрация AST (фаза построения)
	RegInfo   Code = 1000
	RegFrozen Code = 1001

	// Элаборация (параметры и порты)
	ElabInfo              Code = 3000
	ElabTooManyParamArgs  Code = 3001
	ElabUnknownParam      Code = 3002
	ElabTooManyPortConns  Code = 3003
	ElabUnknownPort       Code = 3004
	ElabPositionalOnly    Code = 3005
	ElabUnresolvedNode    Code = 3006
	ElabDepthExceeded     Code = 3007
	ElabInternal          Code = 3999

	// IO и дизайн-описания
	IOInfo           Code = 4000
	IOReadFailed     Code = 4001
	DesignBadFile    Code = 4002
	DesignBadRef     Code = 4003
	DesignDuplicate  Code = 4004
)

var codeDescription = map[Code]string{
	UnknownCode: "unknown error",

	RegInfo:   "registry info",
	RegFrozen: "registry modified after freeze",

	ElabInfo:             "elaboration info",
	ElabTooManyParamArgs: "too many positional parameter assignments",
	ElabUnknownParam:     "no such parameter",
	ElabTooManyPortConns: "too many positional port connections",
	ElabUnknownPort:      "no such port",
	ElabPositionalOnly:   "node requires positional connections",
	ElabUnresolvedNode:   "node could not be resolved",
	ElabDepthExceeded:    "instantiation hierarchy too deep",
	ElabInternal:         "internal elaboration error",

	IOInfo:          "io info",
	IOReadFailed:    "failed to read input",
	DesignBadFile:   "malformed design description",
	DesignBadRef:    "design references unknown entity",
	DesignDuplicate: "duplicate design entity",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("REG%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("ELB%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
