package ast

import (
	"fmt"

	"latch/internal/source"
)

// Kind tags the variant of a Node. There is no virtual dispatch: code that
// needs per-kind behavior switches on Kind or uses a dispatch table (walk.go).
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindModule is a module declaration with parameters, ports and body items.
	KindModule
	// KindInterface is an interface declaration.
	KindInterface
	// KindPort is one external port of a module or interface.
	KindPort
	// KindTypeParam is a type parameter declaration.
	KindTypeParam
	// KindValueParam is a value parameter declaration.
	KindValueParam
	// KindInstTarget names the instantiated module/interface and carries the
	// parameter assignments of an instantiation.
	KindInstTarget
	// KindInst is a named instance with its port connections.
	KindInst
	// KindExpr is an argument expression (opaque to elaboration).
	KindExpr
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindInterface:
		return "interface"
	case KindPort:
		return "port"
	case KindTypeParam:
		return "type parameter"
	case KindValueParam:
		return "parameter"
	case KindInstTarget:
		return "instantiation"
	case KindInst:
		return "instance"
	case KindExpr:
		return "expression"
	}
	return "invalid node"
}

// PosArg is one positional assignment at an instantiation site.
// Node == NoNodeID means the position was left empty (a hole).
type PosArg struct {
	Span source.Span
	Node NodeID
}

// NamedArg is one named assignment at an instantiation site.
type NamedArg struct {
	Span     source.Span
	Name     source.StringID
	NameSpan source.Span
	Node     NodeID
}

// Node is the tagged-variant AST record. Only the fields relevant to the Kind
// are populated; the rest stay zero.
type Node struct {
	Kind Kind
	Name source.StringID
	Span source.Span

	// Module, Interface: header+body parameters in declaration order, external
	// ports in declaration order, body items (instances).
	Params []NodeID
	Ports  []NodeID
	Items  []NodeID

	// InstTarget: the declaration being instantiated.
	// Inst: the InstTarget node.
	Target NodeID

	// InstTarget: parameter assignments.
	ParamPos   []PosArg
	ParamNamed []NamedArg

	// Inst: port connections.
	PortPos   []PosArg
	PortNamed []NamedArg

	// Expr: surface text, for dumps and diagnostics only.
	Text source.StringID
}

// Describe renders a short human description like "module `fifo`".
// names may be nil, in which case only the kind is printed.
func (n *Node) Describe(names *source.Interner) string {
	if n == nil {
		return "unknown node"
	}
	if names != nil && n.Name != source.NoStringID {
		if s, ok := names.Lookup(n.Name); ok {
			return fmt.Sprintf("%s `%s`", n.Kind, s)
		}
	}
	return n.Kind.String()
}
