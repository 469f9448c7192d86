package elab

import (
	"fmt"

	"latch/internal/ast"
)

// ParamEnv is a handle to one interned ParamEnvData. It is cheap to copy and
// compare; two handles are equal iff their data is content-equal.
//
// DefaultEnv (0) is the empty environment of non-instantiated scopes.
type ParamEnv uint32

const DefaultEnv ParamEnv = 0

func (e ParamEnv) String() string {
	return fmt.Sprintf("p%d", uint32(e))
}

// NodeEnvID names "the value of this node under this environment". It is the
// binding target of indirections and the key of downstream queries.
type NodeEnvID struct {
	Node ast.NodeID
	Env  ParamEnv
}

// InEnv associates parameter bindings with a node.
func InEnv(id ast.NodeID, env ParamEnv) NodeEnvID {
	return NodeEnvID{Node: id, Env: env}
}

func (id NodeEnvID) String() string {
	return fmt.Sprintf("n%d@%s", uint32(id.Node), id.Env)
}

// ValueRef is an opaque handle to an evaluated parameter value. Values are
// produced and inspected by the downstream value query only.
type ValueRef uint32

// TypeRef is an opaque handle to a resolved type. Types are produced and
// inspected by the downstream type query only.
type TypeRef uint32

// BindingKind discriminates Binding.
type BindingKind uint8

const (
	// BindDirect carries a resolved value or type.
	BindDirect BindingKind = iota
	// BindIndirect points at another node's value or type under another
	// (typically outer) environment.
	BindIndirect
)

// Binding describes how a parameter is satisfied: directly, or by deferring
// to another node under another environment.
type Binding[T comparable] struct {
	Kind   BindingKind
	Direct T         // valid when Kind == BindDirect
	Target NodeEnvID // valid when Kind == BindIndirect
}

// DirectBinding makes a resolved binding.
func DirectBinding[T comparable](v T) Binding[T] {
	return Binding[T]{Kind: BindDirect, Direct: v}
}

// IndirectBinding makes a deferred binding.
func IndirectBinding[T comparable](target NodeEnvID) Binding[T] {
	return Binding[T]{Kind: BindIndirect, Target: target}
}

func (b Binding[T]) String() string {
	if b.Kind == BindIndirect {
		return fmt.Sprintf("-> %s", b.Target)
	}
	return fmt.Sprintf("= %v", b.Direct)
}

// ValueEntry is one (parameter, value binding) pair.
type ValueEntry struct {
	Param   ast.NodeID
	Binding Binding[ValueRef]
}

// TypeEntry is one (parameter, type binding) pair.
type TypeEntry struct {
	Param   ast.NodeID
	Binding Binding[TypeRef]
}

// IntfEntry associates an interface port with the environment of the
// interface instance connected to it.
type IntfEntry struct {
	Port ast.NodeID
	Inst NodeEnvID
}

// ParamEnvData is the resolved content of one environment: the bindings one
// instantiation produced. It is mutable only while a single resolution call
// constructs it; once interned it must never change.
//
// A parameter appears at most once per list as far as SetValue is concerned
// (last write visible). ComputeParamEnv may insert a parameter twice when it
// is assigned both positionally and by name; FindValue then returns the
// first-inserted (positional) binding.
type ParamEnvData struct {
	module ast.NodeID
	values []ValueEntry
	types  []TypeEntry
	intfs  []IntfEntry
}

// NewParamEnvData assembles environment content from pre-built binding lists.
// Cache restoration uses this; regular resolution goes through
// ComputeParamEnv.
func NewParamEnvData(module ast.NodeID, values []ValueEntry, types []TypeEntry, intfs []IntfEntry) ParamEnvData {
	return ParamEnvData{module: module, values: values, types: types, intfs: intfs}
}

// Module returns the node whose instantiation produced this environment, or
// NoNodeID for the default environment.
func (d *ParamEnvData) Module() ast.NodeID {
	return d.module
}

// FindValue returns the value binding of a parameter node.
func (d *ParamEnvData) FindValue(node ast.NodeID) (Binding[ValueRef], bool) {
	for _, e := range d.values {
		if e.Param == node {
			return e.Binding, true
		}
	}
	return Binding[ValueRef]{}, false
}

// FindType returns the type binding of a parameter node.
func (d *ParamEnvData) FindType(node ast.NodeID) (Binding[TypeRef], bool) {
	for _, e := range d.types {
		if e.Param == node {
			return e.Binding, true
		}
	}
	return Binding[TypeRef]{}, false
}

// FindInterface returns the parametrization of an interface port.
func (d *ParamEnvData) FindInterface(node ast.NodeID) (NodeEnvID, bool) {
	for _, e := range d.intfs {
		if e.Port == node {
			return e.Inst, true
		}
	}
	return NodeEnvID{}, false
}

// ReverseFindValue returns the parameter an argument node was bound to.
func (d *ParamEnvData) ReverseFindValue(node ast.NodeID) (ast.NodeID, bool) {
	for _, e := range d.values {
		if e.Binding.Kind == BindIndirect && e.Binding.Target.Node == node {
			return e.Param, true
		}
	}
	return ast.NoNodeID, false
}

// SetValue assigns a direct value to a parameter node, replacing any prior
// binding for the same node.
func (d *ParamEnvData) SetValue(node ast.NodeID, value ValueRef) {
	kept := d.values[:0]
	for _, e := range d.values {
		if e.Param != node {
			kept = append(kept, e)
		}
	}
	d.values = append(kept, ValueEntry{Param: node, Binding: DirectBinding(value)})
}

// AddInterfaces appends interface-port parametrizations.
func (d *ParamEnvData) AddInterfaces(entries ...IntfEntry) {
	d.intfs = append(d.intfs, entries...)
}

// Values returns the value bindings in insertion order.
// READONLY: возвращаемый срез указывает на внутренние данные.
func (d *ParamEnvData) Values() []ValueEntry {
	return d.values
}

// Types returns the type bindings in insertion order.
// READONLY
func (d *ParamEnvData) Types() []TypeEntry {
	return d.types
}

// Interfaces returns the interface-port associations in insertion order.
// READONLY
func (d *ParamEnvData) Interfaces() []IntfEntry {
	return d.intfs
}
