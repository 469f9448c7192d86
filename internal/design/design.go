// Package design loads TOML design descriptions into the AST registry.
//
// A design description is a driver/test harness format, not a language front
// end: it declares modules, interfaces, their parameters and ports, and the
// instances inside each body, with argument expressions kept as opaque text.
package design

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"latch/internal/ast"
	"latch/internal/diag"
	"latch/internal/source"
)

// Design is a loaded description plus the node handles the driver starts
// from.
type Design struct {
	Registry *ast.Registry
	FileSet  *source.FileSet
	Roots    []ast.NodeID
	Bag      *diag.Bag
}

type designFile struct {
	Top        []string     `toml:"top"`
	Modules    []declBlock  `toml:"module"`
	Interfaces []declBlock  `toml:"interface"`
}

type declBlock struct {
	Name      string      `toml:"name"`
	Params    []paramDecl `toml:"params"`
	Ports     []portDecl  `toml:"ports"`
	Instances []instDecl  `toml:"instances"`
}

type paramDecl struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"` // "value" (default) | "type"
}

type portDecl struct {
	Name string `toml:"name"` // empty => unnamed port
}

type instDecl struct {
	Name       string        `toml:"name"`
	Of         string        `toml:"of"`
	ParamPos   []string      `toml:"param_pos"` // "_" = hole
	ParamNamed []namedAssign `toml:"param_named"`
	PortPos    []string      `toml:"port_pos"`
	PortNamed  []namedAssign `toml:"port_named"`
}

type namedAssign struct {
	Name string `toml:"name"`
	Expr string `toml:"expr"`
}

// Hole is the positional placeholder for "no argument at this position".
const Hole = "_"

// Load reads and registers a design description. Problems are reported into
// the returned Bag; the Registry is frozen only by the elaboration session,
// not here.
func Load(path string) (*Design, error) {
	fileSet := source.NewFileSet()
	fileID, err := fileSet.Load(path)
	if err != nil {
		bag := diag.NewBag(1)
		diag.ReportError(diag.BagReporter{Bag: bag}, diag.IOReadFailed, source.Span{},
			fmt.Sprintf("cannot read `%s`: %v", path, err)).Emit()
		return &Design{FileSet: fileSet, Bag: bag}, fmt.Errorf("load design %q: %w", path, err)
	}
	file, _ := fileSet.Get(fileID)
	return parse(fileSet, fileID, file.Content)
}

// LoadVirtual registers an in-memory description (tests).
func LoadVirtual(name string, content []byte) (*Design, error) {
	fileSet := source.NewFileSet()
	fileID := fileSet.AddVirtual(name, content)
	return parse(fileSet, fileID, content)
}

func parse(fileSet *source.FileSet, fileID source.FileID, content []byte) (*Design, error) {
	bag := diag.NewBag(64)
	rep := diag.BagReporter{Bag: bag}
	fileSpan := source.Span{File: fileID, Start: 0, End: uint32(len(content))}

	var df designFile
	if err := toml.Unmarshal(content, &df); err != nil {
		diag.ReportError(rep, diag.DesignBadFile, fileSpan, err.Error()).Emit()
		return &Design{FileSet: fileSet, Bag: bag}, fmt.Errorf("parse design: %w", err)
	}

	names := source.NewInterner()
	reg := ast.NewRegistry(names)
	b := &builder{
		reg:      reg,
		names:    names,
		rep:      rep,
		fileSpan: fileSpan,
		decls:    make(map[string]ast.NodeID),
	}

	// Первый проход: объявления. Второй: инстансы (могут ссылаться вперёд).
	for i := range df.Modules {
		b.addDecl(&df.Modules[i], ast.KindModule)
	}
	for i := range df.Interfaces {
		b.addDecl(&df.Interfaces[i], ast.KindInterface)
	}
	for i := range df.Modules {
		b.addInstances(&df.Modules[i])
	}
	for i := range df.Interfaces {
		b.addInstances(&df.Interfaces[i])
	}

	roots := make([]ast.NodeID, 0, len(df.Top))
	for _, top := range df.Top {
		id, ok := b.decls[top]
		if !ok {
			diag.ReportError(rep, diag.DesignBadRef, fileSpan,
				fmt.Sprintf("top module `%s` is not declared", top)).Emit()
			continue
		}
		roots = append(roots, id)
	}

	return &Design{Registry: reg, FileSet: fileSet, Roots: roots, Bag: bag}, nil
}

type builder struct {
	reg      *ast.Registry
	names    *source.Interner
	rep      diag.Reporter
	fileSpan source.Span
	decls    map[string]ast.NodeID
}

func (b *builder) addDecl(d *declBlock, kind ast.Kind) {
	if _, dup := b.decls[d.Name]; dup {
		diag.ReportError(b.rep, diag.DesignDuplicate, b.fileSpan,
			fmt.Sprintf("`%s` is declared twice", d.Name)).Emit()
		return
	}

	params := make([]ast.NodeID, 0, len(d.Params))
	for _, p := range d.Params {
		pk := ast.KindValueParam
		if p.Kind == "type" {
			pk = ast.KindTypeParam
		}
		params = append(params, b.reg.Add(ast.Node{
			Kind: pk,
			Name: b.names.Intern(p.Name),
			Span: b.fileSpan,
		}))
	}

	ports := make([]ast.NodeID, 0, len(d.Ports))
	for _, p := range d.Ports {
		name := source.NoStringID
		if p.Name != "" {
			name = b.names.Intern(p.Name)
		}
		ports = append(ports, b.reg.Add(ast.Node{
			Kind: ast.KindPort,
			Name: name,
			Span: b.fileSpan,
		}))
	}

	b.decls[d.Name] = b.reg.Add(ast.Node{
		Kind:   kind,
		Name:   b.names.Intern(d.Name),
		Span:   b.fileSpan,
		Params: params,
		Ports:  ports,
	})
}

func (b *builder) addInstances(d *declBlock) {
	declID, ok := b.decls[d.Name]
	if !ok {
		return
	}

	items := make([]ast.NodeID, 0, len(d.Instances))
	for _, inst := range d.Instances {
		targetDecl, ok := b.decls[inst.Of]
		if !ok {
			diag.ReportError(b.rep, diag.DesignBadRef, b.fileSpan,
				fmt.Sprintf("instance `%s` refers to undeclared `%s`", inst.Name, inst.Of)).Emit()
			continue
		}

		target := b.reg.Add(ast.Node{
			Kind:       ast.KindInstTarget,
			Name:       b.names.Intern(inst.Of),
			Span:       b.fileSpan,
			Target:     targetDecl,
			ParamPos:   b.posArgs(inst.ParamPos),
			ParamNamed: b.namedArgs(inst.ParamNamed),
		})
		instID := b.reg.Add(ast.Node{
			Kind:      ast.KindInst,
			Name:      b.names.Intern(inst.Name),
			Span:      b.fileSpan,
			Target:    target,
			PortPos:   b.posArgs(inst.PortPos),
			PortNamed: b.namedArgs(inst.PortNamed),
		})
		items = append(items, instID)
	}
	if len(items) == 0 {
		return
	}
	// Add растит арену, поэтому указатель на узел объявления берём только
	// после всех аллокаций блока.
	declNode, _ := b.reg.Get(declID)
	declNode.Items = append(declNode.Items, items...)
}

func (b *builder) posArgs(exprs []string) []ast.PosArg {
	out := make([]ast.PosArg, 0, len(exprs))
	for _, e := range exprs {
		arg := ast.PosArg{Span: b.fileSpan}
		if e != Hole {
			arg.Node = b.exprNode(e)
		}
		out = append(out, arg)
	}
	return out
}

func (b *builder) namedArgs(assigns []namedAssign) []ast.NamedArg {
	out := make([]ast.NamedArg, 0, len(assigns))
	for _, a := range assigns {
		arg := ast.NamedArg{
			Span:     b.fileSpan,
			Name:     b.names.Intern(a.Name),
			NameSpan: b.fileSpan,
		}
		if a.Expr != Hole && a.Expr != "" {
			arg.Node = b.exprNode(a.Expr)
		}
		out = append(out, arg)
	}
	return out
}

func (b *builder) exprNode(text string) ast.NodeID {
	return b.reg.Add(ast.Node{
		Kind: ast.KindExpr,
		Span: b.fileSpan,
		Text: b.names.Intern(text),
	})
}
