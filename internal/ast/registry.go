package ast

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"latch/internal/diag"
	"latch/internal/source"
)

// Registry is the write-once store mapping NodeIDs to AST facts.
//
// It follows a two-phase protocol: a construction phase during which Add
// allocates nodes, then Freeze, after which the registry is read-only and safe
// for unsynchronized concurrent reads. Add after Freeze is a compiler defect
// and panics.
type Registry struct {
	nodes  *Arena[Node]
	names  *source.Interner
	frozen bool
}

// NewRegistry creates an empty registry whose node names live in names.
func NewRegistry(names *source.Interner) *Registry {
	if names == nil {
		names = source.NewInterner()
	}
	return &Registry{
		nodes: NewArena[Node](64),
		names: names,
	}
}

// Add allocates a fresh NodeID for the node.
func (r *Registry) Add(n Node) NodeID {
	if r.frozen {
		panic(fmt.Sprintf("%s: registry frozen, cannot add %s", diag.RegFrozen.ID(), n.Kind))
	}
	return NodeID(r.nodes.Allocate(n))
}

// Freeze ends the construction phase. Idempotent.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether construction has ended.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// Get returns the node for an ID.
func (r *Registry) Get(id NodeID) (*Node, bool) {
	n := r.nodes.Get(uint32(id))
	if n == nil {
		return nil, false
	}
	return n, true
}

// Names returns the string interner backing node names.
func (r *Registry) Names() *source.Interner {
	return r.names
}

// Describe renders a short human description of a node, e.g. "module `fifo`".
func (r *Registry) Describe(id NodeID) string {
	n, ok := r.Get(id)
	if !ok {
		return "unknown node"
	}
	return n.Describe(r.names)
}

// Len returns the number of registered nodes.
func (r *Registry) Len() uint32 {
	return r.nodes.Len()
}

// Digest hashes the full node table. Two registries with identical content
// produce the same digest; used as the disk-cache key for elaborated
// environment tables.
func (r *Registry) Digest() [32]byte {
	h := sha256.New()
	var buf [4]byte
	writeU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	// StringID зависят от порядка интернирования, поэтому хэшируем сами
	// строки с префиксом длины.
	writeStr := func(id source.StringID) {
		s, _ := r.names.Lookup(id)
		writeU32(uint32(len(s)))
		h.Write([]byte(s))
	}
	writeIDs := func(ids []NodeID) {
		writeU32(uint32(len(ids)))
		for _, id := range ids {
			writeU32(uint32(id))
		}
	}
	writePos := func(args []PosArg) {
		writeU32(uint32(len(args)))
		for _, a := range args {
			writeU32(uint32(a.Node))
		}
	}
	writeNamed := func(args []NamedArg) {
		writeU32(uint32(len(args)))
		for _, a := range args {
			writeStr(a.Name)
			writeU32(uint32(a.Node))
		}
	}
	for _, n := range r.nodes.Slice() {
		writeU32(uint32(n.Kind))
		writeStr(n.Name)
		writeIDs(n.Params)
		writeIDs(n.Ports)
		writeIDs(n.Items)
		writeU32(uint32(n.Target))
		writePos(n.ParamPos)
		writeNamed(n.ParamNamed)
		writePos(n.PortPos)
		writeNamed(n.PortNamed)
		writeStr(n.Text)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
