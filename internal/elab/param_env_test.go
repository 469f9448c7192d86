package elab

import (
	"strings"
	"testing"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/source"
)

// fixture assembles a small design directly in the registry: a `fifo` module
// with parameters (WIDTH, DEPTH), and caller-side argument expressions.
type fixture struct {
	reg   *ast.Registry
	names *source.Interner

	fifo   ast.NodeID
	width  ast.NodeID
	depth  ast.NodeID
	clk    ast.NodeID
	din    ast.NodeID
	params []ast.NodeID
}

func newFixture() *fixture {
	names := source.NewInterner()
	reg := ast.NewRegistry(names)
	f := &fixture{reg: reg, names: names}

	f.width = reg.Add(ast.Node{Kind: ast.KindValueParam, Name: names.Intern("WIDTH")})
	f.depth = reg.Add(ast.Node{Kind: ast.KindValueParam, Name: names.Intern("DEPTH")})
	f.clk = reg.Add(ast.Node{Kind: ast.KindPort, Name: names.Intern("clk")})
	f.din = reg.Add(ast.Node{Kind: ast.KindPort, Name: names.Intern("din")})
	f.params = []ast.NodeID{f.width, f.depth}
	f.fifo = reg.Add(ast.Node{
		Kind:   ast.KindModule,
		Name:   names.Intern("fifo"),
		Params: f.params,
		Ports:  []ast.NodeID{f.clk, f.din},
	})
	return f
}

func (f *fixture) expr(text string) ast.NodeID {
	return f.reg.Add(ast.Node{Kind: ast.KindExpr, Text: f.names.Intern(text)})
}

func (f *fixture) session() (*Session, *diag.Bag) {
	bag := diag.NewBag(16)
	return NewSession(f.reg, diag.BagReporter{Bag: bag}), bag
}

func pos(node ast.NodeID) ast.PosArg {
	return ast.PosArg{Node: node}
}

func (f *fixture) named(name string, node ast.NodeID) ast.NamedArg {
	return ast.NamedArg{Name: f.names.Intern(name), Node: node}
}

func TestPositionalBindsInDeclarationOrder(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	four := f.expr("4")
	sess, bag := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: f.fifo,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{pos(eight), pos(four)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v (diags: %v)", err, bag.Items())
	}

	data, ok := sess.ParamEnvData(env)
	if !ok {
		t.Fatalf("interned env %s has no data", env)
	}
	wantPairs := []struct {
		param ast.NodeID
		arg   ast.NodeID
	}{
		{f.width, eight},
		{f.depth, four},
	}
	for _, want := range wantPairs {
		b, ok := data.FindValue(want.param)
		if !ok {
			t.Fatalf("parameter n%d has no binding", want.param)
		}
		if b.Kind != BindIndirect {
			t.Fatalf("expected indirect binding, got %v", b)
		}
		if b.Target != InEnv(want.arg, DefaultEnv) {
			t.Fatalf("parameter n%d bound to %s, want %s", want.param, b.Target, InEnv(want.arg, DefaultEnv))
		}
	}
}

// Scenario: fifo #(8, .DEPTH(4)) — WIDTH positionally, DEPTH by name, both
// scoped in the caller's environment.
func TestPositionalAndNamedMix(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	four := f.expr("4")
	sess, _ := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind:  SrcModuleInst,
		Node:  f.fifo,
		Env:   DefaultEnv,
		Pos:   []ast.PosArg{pos(eight)},
		Named: []ast.NamedArg{f.named("DEPTH", four)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}

	data, _ := sess.ParamEnvData(env)
	if b, ok := data.FindValue(f.width); !ok || b.Target.Node != eight {
		t.Fatalf("WIDTH not bound to positional argument: %v ok=%v", b, ok)
	}
	if b, ok := data.FindValue(f.depth); !ok || b.Target.Node != four {
		t.Fatalf("DEPTH not bound to named argument: %v ok=%v", b, ok)
	}
}

// Scenario: fifo #(.DEPTH(4)) — WIDTH gets no binding at all; downstream
// default resolution has to supply it.
func TestUnassignedParameterStaysUnbound(t *testing.T) {
	f := newFixture()
	four := f.expr("4")
	sess, _ := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind:  SrcModuleInst,
		Node:  f.fifo,
		Env:   DefaultEnv,
		Named: []ast.NamedArg{f.named("DEPTH", four)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}

	data, _ := sess.ParamEnvData(env)
	if _, ok := data.FindValue(f.width); ok {
		t.Fatal("WIDTH must stay unbound when no argument is supplied")
	}
	if _, ok := data.FindValue(f.depth); !ok {
		t.Fatal("DEPTH must be bound")
	}
}

func TestPositionalHoleStaysUnbound(t *testing.T) {
	f := newFixture()
	four := f.expr("4")
	sess, _ := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: f.fifo,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{{Node: ast.NoNodeID}, pos(four)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	data, _ := sess.ParamEnvData(env)
	if _, ok := data.FindValue(f.width); ok {
		t.Fatal("hole argument must leave the parameter unbound")
	}
	if b, ok := data.FindValue(f.depth); !ok || b.Target.Node != four {
		t.Fatalf("DEPTH not bound past the hole: %v ok=%v", b, ok)
	}
}

// Scenario: a third positional argument against two declared parameters.
func TestTooManyPositionalArguments(t *testing.T) {
	f := newFixture()
	a, b, c := f.expr("1"), f.expr("2"), f.expr("3")
	sess, bag := f.session()
	before := sess.Envs().Len()

	_, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: f.fifo,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{pos(a), pos(b), pos(c)},
	})
	if err == nil {
		t.Fatal("expected resolution failure")
	}
	if bag.Len() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code != diag.ElabTooManyParamArgs {
		t.Fatalf("wrong code: %v", d.Code)
	}
	if want := "module `fifo` only has 2 parameter(s)"; d.Message != want {
		t.Fatalf("message %q, want %q", d.Message, want)
	}
	if sess.Envs().Len() != before {
		t.Fatal("no environment may be interned for a failed site")
	}
}

func TestUnknownNamedParameterListsDeclaredNames(t *testing.T) {
	f := newFixture()
	four := f.expr("4")
	sess, bag := f.session()

	_, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind:  SrcModuleInst,
		Node:  f.fifo,
		Env:   DefaultEnv,
		Named: []ast.NamedArg{f.named("WIDHT", four)},
	})
	if err == nil {
		t.Fatal("expected resolution failure")
	}
	d := bag.Items()[0]
	if d.Code != diag.ElabUnknownParam {
		t.Fatalf("wrong code: %v", d.Code)
	}
	if want := "no parameter `WIDHT` in module `fifo`"; d.Message != want {
		t.Fatalf("message %q, want %q", d.Message, want)
	}
	if len(d.Notes) != 1 || !strings.Contains(d.Notes[0].Msg, "`WIDTH`, `DEPTH`") {
		t.Fatalf("note must enumerate declared names, got %v", d.Notes)
	}
}

// A parameter assigned both positionally and by name keeps both entries;
// lookup returns the first-inserted (positional) binding. This ordering is
// pinned here on purpose.
func TestPositionalWinsOverNamedForSameParameter(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	nine := f.expr("9")
	sess, _ := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind:  SrcModuleInst,
		Node:  f.fifo,
		Env:   DefaultEnv,
		Pos:   []ast.PosArg{pos(eight)},
		Named: []ast.NamedArg{f.named("WIDTH", nine)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}

	data, _ := sess.ParamEnvData(env)
	if len(data.Values()) != 2 {
		t.Fatalf("expected both entries to be kept, got %d", len(data.Values()))
	}
	b, _ := data.FindValue(f.width)
	if b.Target.Node != eight {
		t.Fatalf("lookup must return the positional binding, got %s", b.Target)
	}
}

func TestSameSiteYieldsIdenticalHandle(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	four := f.expr("4")
	sess, _ := f.session()

	src := ParamEnvSource{
		Kind:  SrcModuleInst,
		Node:  f.fifo,
		Env:   DefaultEnv,
		Pos:   []ast.PosArg{pos(eight)},
		Named: []ast.NamedArg{f.named("DEPTH", four)},
	}
	env1, err1 := ComputeParamEnv(sess, src)
	env2, err2 := ComputeParamEnv(sess, src)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected failure: %v / %v", err1, err2)
	}
	if env1 != env2 {
		t.Fatalf("identical inputs must yield the identical handle: %s != %s", env1, env2)
	}
}

func TestArgumentsQualifiedByOuterEnvironment(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	sess, _ := f.session()

	outer := sess.InternParamEnv(NewParamEnvData(f.fifo, nil, nil, nil))
	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: f.fifo,
		Env:  outer,
		Pos:  []ast.PosArg{pos(eight)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	data, _ := sess.ParamEnvData(env)
	b, _ := data.FindValue(f.width)
	if b.Target.Env != outer {
		t.Fatalf("argument must be scoped in the outer environment %s, got %s", outer, b.Target.Env)
	}
}

func TestLoweringHints(t *testing.T) {
	names := source.NewInterner()
	reg := ast.NewRegistry(names)
	tparam := reg.Add(ast.Node{Kind: ast.KindTypeParam, Name: names.Intern("T")})
	vparam := reg.Add(ast.Node{Kind: ast.KindValueParam, Name: names.Intern("N")})
	intf := reg.Add(ast.Node{
		Kind:   ast.KindInterface,
		Name:   names.Intern("bus_if"),
		Params: []ast.NodeID{tparam, vparam},
	})
	tArg := reg.Add(ast.Node{Kind: ast.KindExpr, Text: names.Intern("logic")})
	vArg := reg.Add(ast.Node{Kind: ast.KindExpr, Text: names.Intern("3")})

	bag := diag.NewBag(16)
	sess := NewSession(reg, diag.BagReporter{Bag: bag})

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcInterfaceInst,
		Node: intf,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{pos(tArg), pos(vArg)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}

	if got := sess.Hints().Get(tArg); got != HintType {
		t.Fatalf("type argument hint = %s, want type", got)
	}
	if got := sess.Hints().Get(vArg); got != HintExpr {
		t.Fatalf("value argument hint = %s, want expr", got)
	}

	data, _ := sess.ParamEnvData(env)
	if _, ok := data.FindType(tparam); !ok {
		t.Fatal("type parameter must land in the type binding list")
	}
	if _, ok := data.FindValue(vparam); !ok {
		t.Fatal("value parameter must land in the value binding list")
	}
}

func TestNonParameterInParamListIsCompilerBug(t *testing.T) {
	names := source.NewInterner()
	reg := ast.NewRegistry(names)
	port := reg.Add(ast.Node{Kind: ast.KindPort, Name: names.Intern("clk")})
	mod := reg.Add(ast.Node{
		Kind:   ast.KindModule,
		Name:   names.Intern("bad"),
		Params: []ast.NodeID{port},
	})
	arg := reg.Add(ast.Node{Kind: ast.KindExpr, Text: names.Intern("1")})

	bag := diag.NewBag(16)
	sess := NewSession(reg, diag.BagReporter{Bag: bag})

	_, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: mod,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{pos(arg)},
	})
	if err == nil {
		t.Fatal("expected failure on misclassified parameter")
	}
	d := bag.Items()[0]
	if d.Severity != diag.SevBug || d.Code != diag.ElabInternal {
		t.Fatalf("expected internal-bug diagnostic, got %v %v", d.Severity, d.Code)
	}
}

func TestEnvContextIsRegistered(t *testing.T) {
	f := newFixture()
	eight := f.expr("8")
	sess, _ := f.session()

	env, err := ComputeParamEnv(sess, ParamEnvSource{
		Kind: SrcModuleInst,
		Node: f.fifo,
		Env:  DefaultEnv,
		Pos:  []ast.PosArg{pos(eight)},
	})
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	ctx := sess.Envs().ContextOf(env)
	if len(ctx) != 1 || ctx[0] != f.fifo {
		t.Fatalf("env context = %v, want [%d]", ctx, f.fifo)
	}
}
