package elab

import (
	"errors"
	"fmt"
	"sync"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/source"
)

// ErrResolve signals that resolution failed for one instantiation site. The
// diagnostic explaining why has already been emitted; independent sites keep
// being resolved.
var ErrResolve = errors.New("resolution failed")

// Context is the narrow boundary between the resolvers and the hosting query
// engine: AST facts in, interned handles and diagnostics out.
type Context interface {
	// AstOf resolves a node ID to its AST fact.
	AstOf(id ast.NodeID) (*ast.Node, error)
	// InternParamEnv canonicalizes data and returns a stable handle.
	InternParamEnv(data ParamEnvData) ParamEnv
	// ParamEnvData returns the content behind a handle.
	ParamEnvData(env ParamEnv) (*ParamEnvData, bool)
	// AddParamEnvContext registers "env resulted from instantiating node".
	AddParamEnvContext(env ParamEnv, node ast.NodeID)
	// SetLoweringHint tags a node for downstream lowering.
	SetLoweringHint(id ast.NodeID, h Hint)
	// CanonicalizePorts returns the external port view of a declaration.
	CanonicalizePorts(id ast.NodeID) (*PortList, error)
	// Describe renders a short human description of a node for diagnostics.
	Describe(id ast.NodeID) string
	// Names returns the interner node names live in.
	Names() *source.Interner
	// Emit reports a user-facing problem.
	Emit(d diag.Diagnostic)
}

// Session is the in-process Context implementation: a frozen AST registry,
// the environment interner, the hint store and a diagnostic reporter.
type Session struct {
	reg   *ast.Registry
	envs  *Interner
	hints *HintStore
	rep   diag.Reporter

	portMu sync.Mutex
	ports  map[ast.NodeID]*PortList
}

// NewSession builds a Session over the registry. The registry is frozen:
// elaboration only ever reads AST facts.
func NewSession(reg *ast.Registry, rep diag.Reporter) *Session {
	reg.Freeze()
	return &Session{
		reg:   reg,
		envs:  NewInterner(),
		hints: NewHintStore(),
		rep:   rep,
		ports: make(map[ast.NodeID]*PortList),
	}
}

// Registry returns the underlying AST registry.
func (s *Session) Registry() *ast.Registry {
	return s.reg
}

// Envs returns the environment interner.
func (s *Session) Envs() *Interner {
	return s.envs
}

// Hints returns the lowering-hint store.
func (s *Session) Hints() *HintStore {
	return s.hints
}

func (s *Session) AstOf(id ast.NodeID) (*ast.Node, error) {
	n, ok := s.reg.Get(id)
	if !ok {
		s.Emit(diag.NewBug(diag.ElabUnresolvedNode, source.Span{},
			fmt.Sprintf("no AST fact for node n%d", uint32(id))))
		return nil, fmt.Errorf("ast of n%d: %w", uint32(id), ErrResolve)
	}
	return n, nil
}

func (s *Session) InternParamEnv(data ParamEnvData) ParamEnv {
	return s.envs.Intern(data)
}

func (s *Session) ParamEnvData(env ParamEnv) (*ParamEnvData, bool) {
	return s.envs.Lookup(env)
}

func (s *Session) AddParamEnvContext(env ParamEnv, node ast.NodeID) {
	s.envs.AddContext(env, node)
}

func (s *Session) SetLoweringHint(id ast.NodeID, h Hint) {
	s.hints.Set(id, h)
}

// CanonicalizePorts memoizes the port view per declaration: the registry is
// frozen, so the view cannot change.
func (s *Session) CanonicalizePorts(id ast.NodeID) (*PortList, error) {
	s.portMu.Lock()
	if list, ok := s.ports[id]; ok {
		s.portMu.Unlock()
		return list, nil
	}
	s.portMu.Unlock()

	n, err := s.AstOf(id)
	if err != nil {
		return nil, err
	}
	if n.Kind != ast.KindModule && n.Kind != ast.KindInterface {
		s.Emit(diag.NewBug(diag.ElabInternal, n.Span,
			fmt.Sprintf("%s has no ports to canonicalize", s.Describe(id))))
		return nil, fmt.Errorf("canonicalize ports of %s: %w", s.Describe(id), ErrResolve)
	}
	list := canonicalizePorts(s.reg, n)

	s.portMu.Lock()
	defer s.portMu.Unlock()
	if prior, ok := s.ports[id]; ok {
		return prior, nil
	}
	s.ports[id] = list
	return list, nil
}

func (s *Session) Describe(id ast.NodeID) string {
	return s.reg.Describe(id)
}

func (s *Session) Names() *source.Interner {
	return s.reg.Names()
}

func (s *Session) Emit(d diag.Diagnostic) {
	if s.rep == nil {
		return
	}
	s.rep.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
}
