package driver

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/elab"
	"latch/internal/source"
)

// Options configures batch elaboration.
type Options struct {
	// Jobs caps parallel workers (0 = NumCPU).
	Jobs int
	// MaxDepth bounds instantiation nesting (0 = 64).
	MaxDepth int
	// MaxDiagnostics bounds the collected Bag (0 = 256).
	MaxDiagnostics int
}

const (
	defaultMaxDepth       = 64
	defaultMaxDiagnostics = 256
)

// Site is the outcome of elaborating one instantiation site under one outer
// environment.
type Site struct {
	Inst   ast.NodeID
	Target ast.NodeID // instantiated module/interface declaration
	Outer  elab.ParamEnv
	Inner  elab.ParamEnv
	Ports  *elab.PortMapping
	Failed bool
}

// Result of elaborating a design.
type Result struct {
	Session *elab.Session
	Sites   []Site
	Bag     *diag.Bag
}

// unit is one (module/interface, environment) pair awaiting elaboration of
// its body instances.
type unit struct {
	decl ast.NodeID
	env  elab.ParamEnv
}

// Elaborate resolves every instantiation reachable from the root modules,
// breadth-first by nesting depth. Each level runs in two phases: environment
// content is computed in parallel across workers, then handles are interned
// sequentially in a fixed site order, so handle numbering and dumps are
// identical run to run regardless of Jobs. Each site is resolved at most once
// per outer environment; failures are per-site and do not stop independent
// sites.
func Elaborate(ctx context.Context, reg *ast.Registry, roots []ast.NodeID, opts Options) (*Result, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = defaultMaxDiagnostics
	}

	bag := diag.NewBag(maxDiags)
	rep := diag.NewLockedReporter(diag.BagReporter{Bag: bag})
	sess := elab.NewSession(reg, rep)

	var (
		sites []Site
		seen  = make(map[elab.NodeEnvID]bool)
		pend  []pendingSite
		next  []unit
	)
	var flight singleflight.Group

	level := make([]unit, 0, len(roots))
	for _, root := range roots {
		key := elab.InEnv(root, elab.DefaultEnv)
		if seen[key] {
			continue
		}
		seen[key] = true
		level = append(level, unit{decl: root, env: elab.DefaultEnv})
	}

	for depth := 0; len(level) > 0; depth++ {
		if depth >= maxDepth {
			span := source.Span{}
			if n, ok := reg.Get(level[0].decl); ok {
				span = n.Span
			}
			sess.Emit(diag.NewError(diag.ElabDepthExceeded, span,
				fmt.Sprintf("instantiation hierarchy exceeds %d levels", maxDepth)))
			break
		}

		// Сайты уровня в фиксированном порядке: юниты в порядке постановки,
		// инстансы в порядке объявления.
		pend = pend[:0]
		for _, u := range level {
			for _, instID := range instancesOf(reg, u.decl) {
				pend = append(pend, pendingSite{inst: instID, outer: u.env})
			}
		}

		// Параллельная фаза: содержимое окружений, без интернирования.
		results := make([]resolution, len(pend))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(jobs)
		for i, p := range pend {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = resolveSite(sess, &flight, p.inst, p.outer)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("elaborate: %w", err)
		}

		// Последовательная фаза: интернируем в порядке сайтов, чтобы нумерация
		// хэндлов не зависела от планировщика, затем резолвим порты.
		next = next[:0]
		for i, p := range pend {
			r := results[i]
			if r.failed {
				sites = append(sites, Site{Inst: p.inst, Target: r.target, Outer: p.outer, Failed: true})
				continue
			}
			inner := sess.InternParamEnv(r.data)
			sess.AddParamEnvContext(inner, r.target)

			inst, err := sess.AstOf(p.inst)
			if err != nil {
				sites = append(sites, Site{Inst: p.inst, Target: r.target, Outer: p.outer, Failed: true})
				continue
			}
			ports, err := elab.ComputePortMapping(sess, elab.PortMappingSource{
				Kind:     r.kind,
				Node:     r.target,
				Inst:     p.inst,
				OuterEnv: p.outer,
				InnerEnv: inner,
				Pos:      inst.PortPos,
				Named:    inst.PortNamed,
			})
			if err != nil {
				sites = append(sites, Site{Inst: p.inst, Target: r.target, Outer: p.outer, Failed: true})
				continue
			}

			sites = append(sites, Site{
				Inst:   p.inst,
				Target: r.target,
				Outer:  p.outer,
				Inner:  inner,
				Ports:  ports,
			})
			key := elab.InEnv(r.target, inner)
			if !seen[key] {
				seen[key] = true
				next = append(next, unit{decl: r.target, env: inner})
			}
		}
		level = append(level[:0], next...)
	}

	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Inst != sites[j].Inst {
			return sites[i].Inst < sites[j].Inst
		}
		return sites[i].Outer < sites[j].Outer
	})
	bag.Sort()

	return &Result{Session: sess, Sites: sites, Bag: bag}, nil
}

// instancesOf collects the instance nodes in a declaration body, in
// declaration order. Descent stops at each instance: its arguments belong to
// the site resolution, not to site collection.
func instancesOf(reg *ast.Registry, decl ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	ast.Walk(reg, decl, ast.DispatchTable{
		ast.KindInst: func(_ *ast.Registry, id ast.NodeID, _ *ast.Node) bool {
			out = append(out, id)
			return false
		},
	})
	return out
}

// pendingSite is one instance awaiting resolution under one outer environment.
type pendingSite struct {
	inst  ast.NodeID
	outer elab.ParamEnv
}

// resolution is the parallel-phase outcome of one site: the environment
// content, not yet interned. It crosses the singleflight boundary.
type resolution struct {
	target ast.NodeID
	kind   elab.SourceKind
	data   elab.ParamEnvData
	failed bool
}

// resolveSite computes one site's environment content. Concurrent requests for
// the same (instance, env) pair are deduplicated so the site's diagnostics are
// emitted once.
func resolveSite(sess *elab.Session, flight *singleflight.Group, instID ast.NodeID, outer elab.ParamEnv) resolution {
	key := elab.InEnv(instID, outer).String()
	v, _, _ := flight.Do(key, func() (any, error) {
		return resolveSiteContent(sess, instID, outer), nil
	})
	r, ok := v.(resolution)
	if !ok {
		return resolution{failed: true}
	}
	return r
}

func resolveSiteContent(sess *elab.Session, instID ast.NodeID, outer elab.ParamEnv) resolution {
	inst, err := sess.AstOf(instID)
	if err != nil {
		return resolution{failed: true}
	}
	target, err := sess.AstOf(inst.Target)
	if err != nil {
		return resolution{failed: true}
	}
	decl, err := sess.AstOf(target.Target)
	if err != nil {
		return resolution{target: target.Target, failed: true}
	}

	kind := elab.SrcModuleInst
	if decl.Kind == ast.KindInterface {
		kind = elab.SrcInterfaceInst
	}
	out := resolution{target: target.Target, kind: kind}

	data, err := elab.ResolveParamEnv(sess, elab.ParamEnvSource{
		Kind:  kind,
		Node:  target.Target,
		Env:   outer,
		Pos:   target.ParamPos,
		Named: target.ParamNamed,
	})
	if err != nil {
		out.failed = true
		return out
	}
	out.data = data
	return out
}
