package elab

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"fortio.org/safecast"

	"latch/internal/ast"
)

// Interner is the canonicalizing store for parameter environments.
//
// Storage is append-only: environments are interned once and live until
// process teardown. Content equality is decided on a canonical form of the
// binding lists (sorted by parameter node), so structurally identical
// environments collapse to one handle regardless of construction order.
// Stored data keeps insertion order untouched: lookup precedence inside one
// environment is a separate concern from dedup.
//
// Safe for concurrent use; at most one copy per content is stored under
// concurrent insertion.
type Interner struct {
	mu      sync.Mutex
	envs    []*ParamEnvData
	index   map[string]ParamEnv
	context map[ParamEnv][]ast.NodeID
}

// NewInterner seeds the store with the empty default environment (handle 0).
func NewInterner() *Interner {
	in := &Interner{
		index:   make(map[string]ParamEnv, 16),
		context: make(map[ParamEnv][]ast.NodeID),
	}
	empty := &ParamEnvData{}
	in.envs = append(in.envs, empty)
	in.index[fingerprint(empty)] = DefaultEnv
	return in
}

// Intern canonicalizes data and returns its stable handle. The data must not
// be mutated by the caller afterwards.
func (in *Interner) Intern(data ParamEnvData) ParamEnv {
	key := fingerprint(&data)

	in.mu.Lock()
	defer in.mu.Unlock()
	if env, ok := in.index[key]; ok {
		return env
	}
	lenEnvs, err := safecast.Conv[uint32](len(in.envs))
	if err != nil {
		panic(fmt.Errorf("len(envs) overflow: %w", err))
	}
	env := ParamEnv(lenEnvs)
	in.envs = append(in.envs, &data)
	in.index[key] = env
	return env
}

// Lookup returns the data behind a handle. The result is immutable.
func (in *Interner) Lookup(env ParamEnv) (*ParamEnvData, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(env) >= len(in.envs) {
		return nil, false
	}
	return in.envs[env], true
}

// AddContext registers "this environment resulted from instantiating this
// node". Idempotent per (env, node) pair.
func (in *Interner) AddContext(env ParamEnv, node ast.NodeID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, n := range in.context[env] {
		if n == node {
			return
		}
	}
	in.context[env] = append(in.context[env], node)
}

// ContextOf returns the nodes whose instantiation produced this environment.
func (in *Interner) ContextOf(env ParamEnv) []ast.NodeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.context[env]
}

// Len returns the number of interned environments, default included.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.envs)
}

// fingerprint builds the canonical content key of an environment.
//
// Binding lists are sorted by parameter node before encoding (stable, so a
// doubly-bound parameter keeps its insertion order among equals). The
// environment's own data is not reordered.
func fingerprint(d *ParamEnvData) string {
	values := make([]ValueEntry, len(d.values))
	copy(values, d.values)
	sort.SliceStable(values, func(i, j int) bool { return values[i].Param < values[j].Param })

	types := make([]TypeEntry, len(d.types))
	copy(types, d.types)
	sort.SliceStable(types, func(i, j int) bool { return types[i].Param < types[j].Param })

	intfs := make([]IntfEntry, len(d.intfs))
	copy(intfs, d.intfs)
	sort.SliceStable(intfs, func(i, j int) bool { return intfs[i].Port < intfs[j].Port })

	var b strings.Builder
	b.WriteString("m")
	b.WriteString(strconv.FormatUint(uint64(d.module), 10))
	b.WriteString("|v")
	for _, e := range values {
		writeBindingKey(&b, e.Param, e.Binding.Kind, uint64(e.Binding.Direct), e.Binding.Target)
	}
	b.WriteString("|t")
	for _, e := range types {
		writeBindingKey(&b, e.Param, e.Binding.Kind, uint64(e.Binding.Direct), e.Binding.Target)
	}
	b.WriteString("|i")
	for _, e := range intfs {
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(uint64(e.Port), 10))
		b.WriteByte(':')
		b.WriteString(e.Inst.String())
	}
	return b.String()
}

func writeBindingKey(b *strings.Builder, param ast.NodeID, kind BindingKind, direct uint64, target NodeEnvID) {
	b.WriteByte('#')
	b.WriteString(strconv.FormatUint(uint64(param), 10))
	if kind == BindDirect {
		b.WriteString("=d")
		b.WriteString(strconv.FormatUint(direct, 10))
		return
	}
	b.WriteString("=i")
	b.WriteString(target.String())
}
