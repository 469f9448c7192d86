package ast

// NodeID identifies one AST node within a Registry.
//
// Identity is the only semantic: the node graph is immutable and widely
// cross-referenced, so nodes refer to each other by ID instead of pointers.
type NodeID uint32

const NoNodeID NodeID = 0

func (id NodeID) IsValid() bool { return id != NoNodeID }
