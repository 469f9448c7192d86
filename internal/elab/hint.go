package elab

import (
	"sync"

	"latch/internal/ast"
)

// Hint disambiguates how a node should be lowered. The surface syntax of a
// type argument and a value argument can be lexically identical, so the
// resolver tags each matched argument for the downstream lowering passes.
type Hint uint8

const (
	HintNone Hint = iota
	// HintType marks the node as a type.
	HintType
	// HintExpr marks the node as a value expression.
	HintExpr
)

func (h Hint) String() string {
	switch h {
	case HintType:
		return "type"
	case HintExpr:
		return "expr"
	}
	return "none"
}

// HintStore is the side-channel map from nodes to lowering hints.
// Safe for concurrent use.
type HintStore struct {
	mu    sync.Mutex
	hints map[ast.NodeID]Hint
}

func NewHintStore() *HintStore {
	return &HintStore{hints: make(map[ast.NodeID]Hint)}
}

// Set records the hint for a node. Later writes win.
func (s *HintStore) Set(id ast.NodeID, h Hint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints[id] = h
}

// Get returns the hint for a node, HintNone if absent.
func (s *HintStore) Get(id ast.NodeID) Hint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hints[id]
}
