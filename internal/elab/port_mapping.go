package elab

import (
	"fmt"
	"strings"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/source"
)

// PortPair is one resolved connection: an external port of the instantiated
// node and the connected node qualified by the caller's environment. Port is
// an unowned back-reference into the canonicalized PortList.
type PortPair struct {
	Port *ExtPort
	Conn NodeEnvID
}

// PortMapping associates the external ports of one instantiation with the
// signals connected to them. Immutable once produced. Ports without a
// connection are simply absent; unconnected-port semantics are a downstream
// concern.
type PortMapping struct {
	pairs []PortPair
}

// Find returns the signal assigned to a port.
func (m *PortMapping) Find(port ast.NodeID) (NodeEnvID, bool) {
	for _, p := range m.pairs {
		if p.Port.ID == port {
			return p.Conn, true
		}
	}
	return NodeEnvID{}, false
}

// ReverseFind returns the port a signal is assigned to.
func (m *PortMapping) ReverseFind(conn ast.NodeID) *ExtPort {
	for _, p := range m.pairs {
		if p.Conn.Node == conn {
			return p.Port
		}
	}
	return nil
}

// Pairs returns the resolved connections in resolution order.
// READONLY
func (m *PortMapping) Pairs() []PortPair {
	return m.pairs
}

// PortMappingSource describes one instantiation site for port resolution.
// The environments must already be resolved: OuterEnv qualifies the connected
// signals, InnerEnv is the environment the instantiation produced.
type PortMappingSource struct {
	Kind SourceKind
	// Node is the instantiated module or interface declaration.
	Node ast.NodeID
	// Inst is the instance node, used to anchor diagnostics.
	Inst     ast.NodeID
	OuterEnv ParamEnv
	InnerEnv ParamEnv
	Pos      []ast.PosArg
	Named    []ast.NamedArg
}

// ComputePortMapping resolves the port connections of one instantiation site,
// or fails with exactly one diagnostic. Mirrors ComputeParamEnv with ports
// substituted for parameters.
func ComputePortMapping(cx Context, src PortMappingSource) (*PortMapping, error) {
	portList, err := cx.CanonicalizePorts(src.Node)
	if err != nil {
		return nil, err
	}

	pairs := make([]PortPair, 0, len(src.Pos)+len(src.Named))

	for i, arg := range src.Pos {
		if i >= len(portList.Pos) {
			cx.Emit(diag.NewError(diag.ElabTooManyPortConns, arg.Span,
				fmt.Sprintf("%s only has %d port(s)", cx.Describe(src.Node), len(portList.Pos))))
			return nil, fmt.Errorf("port mapping of %s: %w", cx.Describe(src.Node), ErrResolve)
		}
		if !arg.Node.IsValid() {
			continue
		}
		pairs = append(pairs, PortPair{
			Port: &portList.Pos[i],
			Conn: InEnv(arg.Node, src.OuterEnv),
		})
	}

	for _, arg := range src.Named {
		argName, _ := cx.Names().Lookup(arg.Name)
		if portList.Named == nil {
			cx.Emit(diag.NewError(diag.ElabPositionalOnly, arg.NameSpan,
				fmt.Sprintf("%s requires positional connections", cx.Describe(src.Node))).
				WithNote(arg.NameSpan,
					fmt.Sprintf("the %s has unnamed ports which require connecting by position", cx.Describe(src.Node))).
				WithNote(arg.NameSpan, fmt.Sprintf("remove `.%s(...)`", argName)))
			return nil, fmt.Errorf("port mapping of %s: %w", cx.Describe(src.Node), ErrResolve)
		}
		index, ok := portList.Named[arg.Name]
		if !ok {
			declared := make([]string, 0, len(portList.Pos))
			for _, p := range portList.Pos {
				if s, ok := cx.Names().Lookup(p.Name); ok && p.Name != source.NoStringID {
					declared = append(declared, "`"+s+"`")
				}
			}
			cx.Emit(diag.NewError(diag.ElabUnknownPort, arg.NameSpan,
				fmt.Sprintf("no port `%s` in %s", argName, cx.Describe(src.Node))).
				WithNote(arg.NameSpan, "declared ports are "+strings.Join(declared, ", ")))
			return nil, fmt.Errorf("port mapping of %s: %w", cx.Describe(src.Node), ErrResolve)
		}
		if !arg.Node.IsValid() {
			continue
		}
		pairs = append(pairs, PortPair{
			Port: &portList.Pos[index],
			Conn: InEnv(arg.Node, src.OuterEnv),
		})
	}

	return &PortMapping{pairs: pairs}, nil
}
