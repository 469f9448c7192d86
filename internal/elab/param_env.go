package elab

import (
	"fmt"
	"strings"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/source"
)

// SourceKind discriminates instantiation sites.
type SourceKind uint8

const (
	// SrcModuleInst is a module instantiation.
	SrcModuleInst SourceKind = iota
	// SrcInterfaceInst is an interface instantiation.
	SrcInterfaceInst
)

// ParamEnvSource describes one instantiation site for environment resolution:
// which declaration is instantiated, the environment in effect around the
// site, and the raw parameter assignments from the instantiation syntax.
type ParamEnvSource struct {
	Kind SourceKind
	// Node is the instantiated module or interface declaration.
	Node ast.NodeID
	// Env is the outer environment. Argument expressions are scoped where
	// they are written, so every produced binding points into this
	// environment, never into the one being constructed.
	Env   ParamEnv
	Pos   []ast.PosArg
	Named []ast.NamedArg
}

// ComputeParamEnv resolves the parameter environment of one instantiation
// site, or fails with exactly one diagnostic. Failure is all-or-nothing: no
// environment is interned for a failed site.
func ComputeParamEnv(cx Context, src ParamEnvSource) (ParamEnv, error) {
	data, err := ResolveParamEnv(cx, src)
	if err != nil {
		return DefaultEnv, err
	}
	handle := cx.InternParamEnv(data)
	cx.AddParamEnvContext(handle, src.Node)
	return handle, nil
}

// ResolveParamEnv computes the environment content of one instantiation site
// without interning it. Handle numbering follows interning order, so callers
// that resolve many sites concurrently resolve content in parallel and intern
// sequentially in a fixed site order (see the driver).
func ResolveParamEnv(cx Context, src ParamEnvSource) (ParamEnvData, error) {
	node, err := cx.AstOf(src.Node)
	if err != nil {
		return ParamEnvData{}, err
	}
	want := ast.KindModule
	if src.Kind == SrcInterfaceInst {
		want = ast.KindInterface
	}
	if node.Kind != want {
		cx.Emit(diag.NewBug(diag.ElabInternal, node.Span,
			fmt.Sprintf("instantiation target %s is not a %s", cx.Describe(src.Node), want)))
		return ParamEnvData{}, fmt.Errorf("param env of %s: %w", cx.Describe(src.Node), ErrResolve)
	}
	// node.Params lists header parameters followed by body parameters; the
	// concatenation order is what positional assignments index into.
	return paramEnvFromInstance(cx, src.Node, node.Params, src.Env, src.Pos, src.Named)
}

// paramAssign pairs a declared parameter with its argument node.
// arg == NoNodeID means the assignment was a hole; the parameter stays
// unbound and downstream queries fall back to its declared default.
type paramAssign struct {
	param ast.NodeID
	arg   ast.NodeID
}

func paramEnvFromInstance(
	cx Context,
	nodeID ast.NodeID,
	params []ast.NodeID,
	env ParamEnv,
	pos []ast.PosArg,
	named []ast.NamedArg,
) (ParamEnvData, error) {
	pairs := make([]paramAssign, 0, len(pos)+len(named))

	// Позиционный проход: i-й аргумент связывается с i-м параметром.
	for i, arg := range pos {
		if i >= len(params) {
			cx.Emit(diag.NewError(diag.ElabTooManyParamArgs, arg.Span,
				fmt.Sprintf("%s only has %d parameter(s)", cx.Describe(nodeID), len(params))))
			return ParamEnvData{}, fmt.Errorf("param env of %s: %w", cx.Describe(nodeID), ErrResolve)
		}
		pairs = append(pairs, paramAssign{param: params[i], arg: arg.Node})
	}

	// Именованный проход: имена типовых и значенческих параметров живут в
	// одном пространстве имён.
	if len(named) > 0 {
		type declName struct {
			name source.StringID
			id   ast.NodeID
		}
		names := make([]declName, 0, len(params))
		for _, pid := range params {
			pn, err := cx.AstOf(pid)
			if err != nil {
				continue
			}
			if pn.Kind != ast.KindTypeParam && pn.Kind != ast.KindValueParam {
				cx.Emit(diag.NewBug(diag.ElabInternal, pn.Span,
					fmt.Sprintf("%s was classified as a parameter of %s", cx.Describe(pid), cx.Describe(nodeID))))
				return ParamEnvData{}, fmt.Errorf("param env of %s: %w", cx.Describe(nodeID), ErrResolve)
			}
			names = append(names, declName{name: pn.Name, id: pid})
		}
		for _, arg := range named {
			found := ast.NoNodeID
			for _, dn := range names {
				if dn.name == arg.Name {
					found = dn.id
					break
				}
			}
			if !found.IsValid() {
				argName, _ := cx.Names().Lookup(arg.Name)
				declared := make([]string, 0, len(names))
				for _, dn := range names {
					s, _ := cx.Names().Lookup(dn.name)
					declared = append(declared, "`"+s+"`")
				}
				cx.Emit(diag.NewError(diag.ElabUnknownParam, arg.NameSpan,
					fmt.Sprintf("no parameter `%s` in %s", argName, cx.Describe(nodeID))).
					WithNote(arg.NameSpan, "declared parameters are "+strings.Join(declared, ", ")))
				return ParamEnvData{}, fmt.Errorf("param env of %s: %w", cx.Describe(nodeID), ErrResolve)
			}
			pairs = append(pairs, paramAssign{param: found, arg: arg.Node})
		}
	}

	// Разделяем на типовые и значенческие связки. Каждая связка — Indirect
	// в НАРУЖНОЕ окружение: аргумент вычисляется там, где написан.
	var values []ValueEntry
	var types []TypeEntry
	for _, p := range pairs {
		if !p.arg.IsValid() {
			continue
		}
		target := InEnv(p.arg, env)
		pn, err := cx.AstOf(p.param)
		if err != nil {
			return ParamEnvData{}, err
		}
		switch pn.Kind {
		case ast.KindTypeParam:
			cx.SetLoweringHint(p.arg, HintType)
			types = append(types, TypeEntry{Param: p.param, Binding: IndirectBinding[TypeRef](target)})
		case ast.KindValueParam:
			cx.SetLoweringHint(p.arg, HintExpr)
			values = append(values, ValueEntry{Param: p.param, Binding: IndirectBinding[ValueRef](target)})
		default:
			cx.Emit(diag.NewBug(diag.ElabInternal, pn.Span,
				fmt.Sprintf("%s was classified as a parameter of %s", cx.Describe(p.param), cx.Describe(nodeID))))
			return ParamEnvData{}, fmt.Errorf("param env of %s: %w", cx.Describe(nodeID), ErrResolve)
		}
	}

	return ParamEnvData{
		module: nodeID,
		values: values,
		types:  types,
	}, nil
}
