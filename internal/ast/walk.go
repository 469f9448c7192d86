package ast

// VisitFn handles one node during a walk. Returning false stops descent into
// the node's children.
type VisitFn func(r *Registry, id NodeID, n *Node) bool

// DispatchTable maps node kinds to visit functions. Kinds without an entry get
// plain default-walk behavior (descend, do nothing).
type DispatchTable map[Kind]VisitFn

// Walk visits id and its children in declaration order, dispatching on Kind.
//
// Children are the nodes a declaration owns: parameters, ports, body items,
// argument expressions, and (for an instance) its instantiation target. The
// declaration an InstTarget points at is NOT a child: crossing that edge would
// re-enter the declaration once per instantiation site and never terminate on
// recursive designs.
func Walk(r *Registry, id NodeID, table DispatchTable) {
	n, ok := r.Get(id)
	if !ok {
		return
	}
	if fn, ok := table[n.Kind]; ok {
		if !fn(r, id, n) {
			return
		}
	}
	for _, child := range n.Params {
		Walk(r, child, table)
	}
	for _, child := range n.Ports {
		Walk(r, child, table)
	}
	for _, child := range n.Items {
		Walk(r, child, table)
	}
	if n.Kind == KindInst && n.Target.IsValid() {
		Walk(r, n.Target, table)
	}
	for _, arg := range n.ParamPos {
		if arg.Node.IsValid() {
			Walk(r, arg.Node, table)
		}
	}
	for _, arg := range n.ParamNamed {
		if arg.Node.IsValid() {
			Walk(r, arg.Node, table)
		}
	}
	for _, arg := range n.PortPos {
		if arg.Node.IsValid() {
			Walk(r, arg.Node, table)
		}
	}
	for _, arg := range n.PortNamed {
		if arg.Node.IsValid() {
			Walk(r, arg.Node, table)
		}
	}
}
