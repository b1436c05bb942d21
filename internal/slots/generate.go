// Package slots generates func-slot implementations of interfaces.
//
// A stub file carries the mockfnstub build tag and declares structs that
// embed interfaces.  For each such struct the generator emits a struct of the
// same name where every embedded interface is replaced by one <Method>Func
// field per method, a forwarding method for each slot, and a Bind<Iface>
// method that fills the slots from a real implementation.  The slots are
// plain func fields, so mockfn.Replace and mockfn.Spy work on them directly.
package slots

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"go/types"
	"os"
	pathpkg "path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
)

const stubTag = "mockfnstub"

// GenerateResult stores the result for a package from a call to Generate.
type GenerateResult struct {
	// PkgPath is the package's PkgPath.
	PkgPath string
	// OutputPath is the path where the generated output should be written.
	// May be empty if there were errors.
	OutputPath string
	// Content is the gofmt'd source code that was generated. May be nil if
	// there were errors during generation.
	Content []byte
	// Errs is a slice of errors identified during generation.
	Errs []error
}

// Commit writes the generated file to disk.
func (gen GenerateResult) Commit() error {
	if len(gen.Content) == 0 {
		return nil
	}
	return os.WriteFile(gen.OutputPath, gen.Content, 0666)
}

// GenerateOptions holds options for Generate.
type GenerateOptions struct {
	// Header will be inserted at the start of each generated file.
	Header []byte

	// PrefixOutputFile is the prefix of the file name to write the generated
	// output to. The suffix will be "mockfn_gen.go".
	PrefixOutputFile string

	// Tags is a comma separated list of additional build tags used when
	// loading packages and regenerating.
	Tags string

	// Dir is the directory to run the build system's query tool
	// that provides information about the packages.
	// If Dir is empty, the tool is run in the current directory.
	Dir string

	// Env is the environment to use when invoking the build system's query tool.
	// If Env is nil, the current environment is used.
	Env []string
}

// Generate generates a code file for each package matching the given patterns.
// Only files with the mockfnstub build tag are read; the generated file is
// excluded from builds using that tag.  A slot is not generated for a method
// that is already declared on the struct elsewhere in the package.
func Generate(ctx context.Context, patterns []string, opts GenerateOptions) ([]GenerateResult, []error) {
	tags := "-tags=" + stubTag
	if opts.Tags != "" {
		tags += "," + opts.Tags
	}

	pkgs, errs := load(ctx, opts.Dir, opts.Env, []string{tags}, patterns)
	if len(errs) > 0 {
		return nil, errs
	}
	generated := make([]GenerateResult, len(pkgs))
	for i, pkg := range pkgs {
		generated[i].PkgPath = pkg.PkgPath
		outDir, err := detectOutputDir(pkg.GoFiles)
		if err != nil {
			generated[i].Errs = append(generated[i].Errs, err)
			continue
		}
		outputFile := opts.PrefixOutputFile + "mockfn_gen"
		if strings.HasSuffix(pkg.Name, "_test") {
			outputFile += "_test"
		}
		outputFile += ".go"
		generated[i].OutputPath = filepath.Join(outDir, outputFile)
		g := newGen(pkg)
		if errs := generateSlots(g, pkg); len(errs) > 0 {
			generated[i].Errs = errs
			continue
		}
		goSrc := g.frame(opts.Tags)
		if len(goSrc) == 0 {
			continue
		}
		if len(opts.Header) > 0 {
			goSrc = append(append([]byte(nil), opts.Header...), goSrc...)
		}
		fmtSrc, err := format.Source(goSrc)
		if err != nil {
			// Keep the unformatted source to help diagnose the generator.
			generated[i].Errs = append(generated[i].Errs, err)
		} else {
			goSrc = fmtSrc
		}
		generated[i].Content = goSrc
	}

	return generated, nil
}

func detectOutputDir(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", errors.New("no files to derive output directory from")
	}
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		if dir2 := filepath.Dir(p); dir2 != dir {
			return "", fmt.Errorf("found conflicting directories %q and %q", dir, dir2)
		}
	}
	return dir, nil
}

func isStub(syntax *ast.File) bool {
	for _, group := range syntax.Comments {
		if group.Pos() > syntax.Package {
			break
		}
		for _, comment := range group.List {
			if comment.Text == "// +build "+stubTag {
				return true
			}
			if strings.HasPrefix(comment.Text, "//go:build "+stubTag) {
				return true
			}
		}
	}
	return false
}

func generateSlots(g *gen, pkg *packages.Package) (errs []error) {
	for _, syntax := range pkg.Syntax {
		if !isStub(syntax) {
			continue
		}
		for _, decl := range syntax.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				if err := g.addDecl(nil, decl); err != nil {
					errs = append(errs, err)
				}
				continue
			}
			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				doc := typeSpec.Doc
				if doc == nil && !genDecl.Lparen.IsValid() {
					doc = genDecl.Doc
				}
				if err := generateStruct(g, pkg, typeSpec, doc); err != nil {
					errs = append(errs, err)
				}
			}
		}

		for _, impt := range syntax.Imports {
			if impt.Name != nil && impt.Name.Name == "_" {
				g.anonImports[impt.Path.Value] = true
			}
		}
	}
	return errs
}

func generateStruct(g *gen, pkg *packages.Package, typeSpec *ast.TypeSpec, doc *ast.CommentGroup) error {
	obj := pkg.TypesInfo.ObjectOf(typeSpec.Name)
	structAST, ok := typeSpec.Type.(*ast.StructType)
	if !ok {
		return g.addDecl(typeSpec.Name, &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{typeSpec}})
	}
	pos := pkg.Fset.Position(typeSpec.Pos())
	if typeSpec.TypeParams != nil {
		return fmt.Errorf("%s: %s: generic stub types are not supported", pos, typeSpec.Name.Name)
	}

	declared := make(map[string]bool)
	if named, ok := obj.Type().(*types.Named); ok {
		for i := 0; i < named.NumMethods(); i++ {
			declared[named.Method(i).Name()] = true
		}
	}

	structName := typeSpec.Name.Name
	fields := &ast.FieldList{}
	var (
		methods    []ast.Decl
		binds      []ast.Decl
		assertions []ast.Decl
	)
	seen := make(map[string]string)
	for _, field := range structAST.Fields.List {
		typ := pkg.TypesInfo.TypeOf(field.Type)
		iface, isIface := typ.Underlying().(*types.Interface)
		if len(field.Names) > 0 || !isIface {
			fields.List = append(fields.List, g.keepField(field, typ))
			continue
		}

		ifaceName := embeddedName(field.Type)
		ifaceType := g.typeString(typ)
		assertions = append(assertions, interfaceAssertion(ifaceType, structName))

		bind := newBind(structName, ifaceName, ifaceType)
		for i := 0; i < iface.NumMethods(); i++ {
			method := iface.Method(i)
			name := method.Name()
			if declared[name] {
				continue
			}
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("%s: %s: method %s is provided by both %s and %s", pos, structName, name, prev, ifaceName)
			}
			seen[name] = ifaceName

			sig := method.Type().(*types.Signature)
			fields.List = append(fields.List, &ast.Field{
				Names: []*ast.Ident{ast.NewIdent(name + "Func")},
				Type:  ast.NewIdent(g.typeString(sig)),
			})
			methods = append(methods, g.forwardMethod(structName, name, sig))
			bind.Body.List = append(bind.Body.List, &ast.AssignStmt{
				Lhs: []ast.Expr{&ast.SelectorExpr{X: ast.NewIdent("m"), Sel: ast.NewIdent(name + "Func")}},
				Tok: token.ASSIGN,
				Rhs: []ast.Expr{&ast.SelectorExpr{X: ast.NewIdent("impl"), Sel: ast.NewIdent(name)}},
			})
		}
		if len(bind.Body.List) > 0 {
			binds = append(binds, bind)
		}
	}

	if len(fields.List) == 0 {
		// prevent zero-size struct
		fields.List = append(fields.List, &ast.Field{
			Names: []*ast.Ident{{Name: "_"}},
			Type:  ast.NewIdent("byte"),
		})
	}

	decl := &ast.GenDecl{
		Tok: token.TYPE,
		Specs: []ast.Spec{&ast.TypeSpec{
			Name: ast.NewIdent(structName),
			Type: &ast.StructType{Fields: fields},
		}},
	}
	if doc != nil {
		for _, c := range doc.List {
			g.buf.WriteString(c.Text)
			g.buf.WriteByte('\n')
		}
	}
	if err := g.addDecl(typeSpec.Name, decl); err != nil {
		return err
	}
	for _, group := range [][]ast.Decl{methods, binds, assertions} {
		for _, d := range group {
			if err := g.addDecl(typeSpec.Name, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// keepField copies a struct field that is not replaced by slots.
func (g *gen) keepField(field *ast.Field, typ types.Type) *ast.Field {
	kept := &ast.Field{Type: ast.NewIdent(g.typeString(typ))}
	for _, name := range field.Names {
		kept.Names = append(kept.Names, ast.NewIdent(name.Name))
	}
	if field.Tag != nil {
		kept.Tag = &ast.BasicLit{Kind: field.Tag.Kind, Value: field.Tag.Value}
	}
	return kept
}

// forwardMethod builds:
//
//	func (m *<structName>) <methodName>(v0 T0, ...) (R0, ...) {
//		return m.<methodName>Func(v0, ...)
//	}
func (g *gen) forwardMethod(structName, methodName string, sig *types.Signature) *ast.FuncDecl {
	params := &ast.FieldList{}
	call := &ast.CallExpr{
		Fun: &ast.SelectorExpr{X: ast.NewIdent("m"), Sel: ast.NewIdent(methodName + "Func")},
	}
	forTuple("v", sig.Params(), func(i int, name string, param *types.Var) {
		typ := g.typeString(param.Type())
		arg := name
		if sig.Variadic() && i == sig.Params().Len()-1 {
			typ = "..." + g.typeString(param.Type().(*types.Slice).Elem())
			arg += "..."
		}
		params.List = append(params.List, &ast.Field{
			Names: []*ast.Ident{ast.NewIdent(name)},
			Type:  ast.NewIdent(typ),
		})
		call.Args = append(call.Args, ast.NewIdent(arg))
	})

	var results *ast.FieldList
	if sig.Results().Len() > 0 {
		results = &ast.FieldList{}
		forTuple("", sig.Results(), func(_ int, _ string, result *types.Var) {
			results.List = append(results.List, &ast.Field{Type: ast.NewIdent(g.typeString(result.Type()))})
		})
	}

	body := &ast.BlockStmt{}
	if results != nil {
		body.List = append(body.List, &ast.ReturnStmt{Results: []ast.Expr{call}})
	} else {
		body.List = append(body.List, &ast.ExprStmt{X: call})
	}

	return &ast.FuncDecl{
		Recv: receiver(structName),
		Name: ast.NewIdent(methodName),
		Type: &ast.FuncType{Params: params, Results: results},
		Body: body,
	}
}

// newBind builds an empty:
//
//	func (m *<structName>) Bind<ifaceName>(impl <ifaceType>) {}
func newBind(structName, ifaceName, ifaceType string) *ast.FuncDecl {
	return &ast.FuncDecl{
		Recv: receiver(structName),
		Name: ast.NewIdent("Bind" + ifaceName),
		Type: &ast.FuncType{
			Params: &ast.FieldList{List: []*ast.Field{{
				Names: []*ast.Ident{ast.NewIdent("impl")},
				Type:  ast.NewIdent(ifaceType),
			}}},
		},
		Body: &ast.BlockStmt{},
	}
}

// interfaceAssertion builds:
//
//	var _ <ifaceType> = (*<structName>)(nil)
func interfaceAssertion(ifaceType, structName string) *ast.GenDecl {
	return &ast.GenDecl{
		Tok: token.VAR,
		Specs: []ast.Spec{
			&ast.ValueSpec{
				Names: []*ast.Ident{{Name: "_"}},
				Type:  ast.NewIdent(ifaceType),
				Values: []ast.Expr{
					&ast.CallExpr{
						Fun:  &ast.ParenExpr{X: &ast.StarExpr{X: ast.NewIdent(structName)}},
						Args: []ast.Expr{ast.NewIdent("nil")},
					},
				},
			},
		},
	}
}

func receiver(structName string) *ast.FieldList {
	return &ast.FieldList{
		List: []*ast.Field{{
			Names: []*ast.Ident{{Name: "m"}},
			Type:  &ast.StarExpr{X: ast.NewIdent(structName)},
		}},
	}
}

// embeddedName returns the field name of an embedded type expression.
func embeddedName(expr ast.Expr) string {
	switch x := expr.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		return x.Sel.Name
	case *ast.StarExpr:
		return embeddedName(x.X)
	case *ast.IndexExpr:
		return embeddedName(x.X)
	case *ast.IndexListExpr:
		return embeddedName(x.X)
	}
	return ""
}

// forTuple calls f for each variable of tuple.  Missing names, and names that
// would shadow the receiver, are replaced by prefix and the position.
func forTuple(prefix string, tuple *types.Tuple, f func(int, string, *types.Var)) {
	for i := 0; i < tuple.Len(); i++ {
		param := tuple.At(i)

		name := param.Name()
		if prefix != "" && (name == "" || name == "_" || name == "m") {
			name = prefix + strconv.Itoa(i)
		}

		f(i, name, param)
	}
}

// importInfo holds info about an import.
type importInfo struct {
	// name is the identifier that is used in the generated source.
	name string
	// differs is true if the import is given an identifier that does not
	// match the last element of its path.
	differs bool
	// copied is true if the import is copied from the stub file.
	copied bool
}

// gen is the file-wide generator state.
type gen struct {
	pkg         *packages.Package
	buf         bytes.Buffer
	imports     map[string]importInfo // keyed by quoted path
	anonImports map[string]bool
}

func newGen(pkg *packages.Package) *gen {
	return &gen{
		pkg:         pkg,
		anonImports: make(map[string]bool),
		imports:     make(map[string]importInfo),
	}
}

func (g *gen) addDecl(name fmt.Stringer, decl ast.Decl) error {
	genDecl, ok := decl.(*ast.GenDecl)
	if ok && genDecl.Tok == token.IMPORT {
		for _, spec := range genDecl.Specs {
			importSpec := spec.(*ast.ImportSpec)
			var name string
			if importSpec.Name != nil {
				name = importSpec.Name.Name
			} else {
				var ok bool
				name, ok = g.resolvePackageName(importSpec.Path.Value)
				if !ok {
					continue
				}
			}
			if name == "_" || name == "." {
				continue
			}
			g.imports[importSpec.Path.Value] = importInfo{
				name:    name,
				differs: importSpec.Name != nil,
				copied:  true,
			}
		}
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, g.pkg.Fset, decl); err != nil {
		if name == nil {
			name = g.pkg.Fset.Position(decl.Pos())
		}
		return fmt.Errorf("%s: error formatting declaration: %w", name, err)
	}
	g.buf.Write(buf.Bytes())
	g.buf.WriteString("\n\n") // Add some spacing between decls
	return nil
}

func (g *gen) resolvePackageName(quoted string) (string, bool) {
	path, err := strconv.Unquote(quoted)
	if err != nil {
		return "", false
	}
	pkg, ok := g.pkg.Imports[path]
	if !ok {
		return "", false
	}
	return pkg.Name, true
}

// resolveImportName returns the identifier for the package at path, adding
// an import if the stub file did not already have one.
func (g *gen) resolveImportName(name, path string) string {
	key := strconv.Quote(path)
	if imp, ok := g.imports[key]; ok {
		return imp.name
	}
	g.imports[key] = importInfo{
		name:    name,
		differs: name != pathpkg.Base(path),
	}
	return name
}

// typeString renders typ as it is spelled in the generated file.
func (g *gen) typeString(typ types.Type) string {
	return types.TypeString(typ, func(pkg *types.Package) string {
		if pkg.Path() == g.pkg.PkgPath {
			return ""
		}
		return g.resolveImportName(pkg.Name(), pkg.Path())
	})
}

// frame bakes the built up source body into an unformatted Go source file.
func (g *gen) frame(tags string) []byte {
	if g.buf.Len() == 0 {
		return nil
	}
	var buf bytes.Buffer
	if len(tags) > 0 {
		tags = fmt.Sprintf(" gen -tags %q", tags)
	}
	buf.WriteString("// Code generated by mockfngen. DO NOT EDIT.\n\n")
	buf.WriteString("//go:generate go run -mod=mod github.com/Versent/go-mockfn/cmd/mockfngen" + tags + "\n")
	buf.WriteString("//go:build !" + stubTag + "\n\n")
	buf.WriteString("package ")
	buf.WriteString(g.pkg.Name)
	buf.WriteString("\n\n")
	imps := make([]string, 0, len(g.imports))
	for path, imp := range g.imports {
		if !imp.copied {
			imps = append(imps, path)
		}
	}
	if len(imps) > 0 {
		buf.WriteString("import (\n")
		sort.Strings(imps)
		for _, path := range imps {
			// Omit the local package identifier if it matches the package name.
			info := g.imports[path]
			if info.differs {
				fmt.Fprintf(&buf, "\t%s %s\n", info.name, path)
			} else {
				fmt.Fprintf(&buf, "\t%s\n", path)
			}
		}
		buf.WriteString(")\n\n")
	}
	if len(g.anonImports) > 0 {
		buf.WriteString("import (\n")
		anonImps := make([]string, 0, len(g.anonImports))
		for path := range g.anonImports {
			anonImps = append(anonImps, path)
		}
		sort.Strings(anonImps)

		for _, path := range anonImps {
			fmt.Fprintf(&buf, "\t_ %s\n", path)
		}
		buf.WriteString(")\n\n")
	}
	buf.Write(g.buf.Bytes())
	return buf.Bytes()
}
