package nohandlerpanic

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer reports calls to panic inside HTTP handler functions, that is
// functions and closures taking (http.ResponseWriter, *http.Request). A
// handler has to answer with an error status instead.
var Analyzer = &analysis.Analyzer{
	Name: "nohandlerpanic",
	Doc:  "prohibits panic inside HTTP handlers",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		// Exclude go-build cache files
		filename := pass.Fset.File(file.Pos()).Name()
		if isGoBuildCacheFile(filename) {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			switch fn := n.(type) {
			case *ast.FuncDecl:
				if fn.Body != nil && isHandler(pass, fn.Type) {
					reportPanics(pass, fn.Body)
				}
			case *ast.FuncLit:
				if isHandler(pass, fn.Type) {
					reportPanics(pass, fn.Body)
				}
			}
			return true
		})
	}
	return nil, nil
}

func isHandler(pass *analysis.Pass, fnType *ast.FuncType) bool {
	var params []types.Type
	for _, field := range fnType.Params.List {
		t := pass.TypesInfo.TypeOf(field.Type)
		if t == nil {
			return false
		}
		names := len(field.Names)
		if names == 0 {
			names = 1
		}
		for i := 0; i < names; i++ {
			params = append(params, t)
		}
	}

	if len(params) != 2 {
		return false
	}

	return isNamed(params[0], "net/http", "ResponseWriter") && isPointerTo(params[1], "net/http", "Request")
}

func isNamed(t types.Type, pkgPath, name string) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()

	return obj.Pkg() != nil && obj.Pkg().Path() == pkgPath && obj.Name() == name
}

func isPointerTo(t types.Type, pkgPath, name string) bool {
	pointer, ok := t.(*types.Pointer)

	return ok && isNamed(pointer.Elem(), pkgPath, name)
}

// reportPanics walks body without descending into nested closures; those are
// checked on their own when they are handlers.
func reportPanics(pass *analysis.Pass, body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		if _, ok := n.(*ast.FuncLit); ok {
			return false
		}

		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		ident, ok := call.Fun.(*ast.Ident)
		if !ok {
			return true
		}

		if _, ok := pass.TypesInfo.Uses[ident].(*types.Builtin); ok && ident.Name == "panic" {
			pass.Reportf(call.Pos(), "avoid panic in HTTP handlers, write an error response instead")
		}

		return true
	})
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/") || strings.Contains(path, `\go-build\`)
}
