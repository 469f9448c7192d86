// Package elab resolves generic instantiation: it turns one instantiation
// site (a module or interface plus its positional/named parameter assignments
// and port connections) into an interned parameter environment and a port
// mapping.
//
// Elaboration never evaluates parameter expressions. Every resolved binding is
// an indirection: "this parameter's value equals that argument node, evaluated
// in the environment surrounding the instantiation". Downstream value/type
// queries follow those indirections lazily, which lets parameter expressions
// reference each other regardless of declaration order and keeps resolution a
// pure, memoizable function of its inputs.
//
// Environments are hash-consed: content-equal binding lists collapse to one
// ParamEnv handle, so handle equality substitutes for deep equality
// everywhere downstream.
package elab
