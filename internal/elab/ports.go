package elab

import (
	"latch/internal/ast"
	"latch/internal/source"
)

// ExtPort is one entry of a node's canonicalized external port view.
type ExtPort struct {
	ID   ast.NodeID
	Name source.StringID // NoStringID for an unnamed port
	Span source.Span
}

// PortList is the ordered external port view of a module or interface.
//
// Named is the name-to-index table for named connections. It is nil when any
// port lacks an external name; such nodes accept positional connections only.
type PortList struct {
	Pos   []ExtPort
	Named map[source.StringID]int
}

// canonicalizePorts derives the external port view from a declaration.
func canonicalizePorts(reg *ast.Registry, node *ast.Node) *PortList {
	list := &PortList{
		Pos:   make([]ExtPort, 0, len(node.Ports)),
		Named: make(map[source.StringID]int, len(node.Ports)),
	}
	for _, portID := range node.Ports {
		pn, ok := reg.Get(portID)
		if !ok {
			continue
		}
		list.Pos = append(list.Pos, ExtPort{ID: portID, Name: pn.Name, Span: pn.Span})
		if pn.Name == source.NoStringID {
			// один безымянный порт запрещает именованные подключения целиком
			list.Named = nil
		} else if list.Named != nil {
			list.Named[pn.Name] = len(list.Pos) - 1
		}
	}
	return list
}
