package dev

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ImportGraph is a snapshot of the project's package import graph, keyed by
// package directory. It implements gateway.GraphSnapshot: node identities
// are cleaned absolute package directories, stable across reloads of the
// same file, and the edges are the reverse ("who imports this") view.
type ImportGraph struct {
	files     map[string]string   // abs file path -> owning package dir
	importers map[string][]string // package dir -> packages importing it
}

// NodesFor returns the graph node for a changed file, or nothing if the
// file was never part of the scan.
func (g *ImportGraph) NodesFor(path string) []string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	dir, ok := g.files[filepath.Clean(abs)]
	if !ok {
		return nil
	}
	return []string{dir}
}

// ImportersOf returns the packages that directly import the given package.
func (g *ImportGraph) ImportersOf(id string) []string {
	return g.importers[id]
}

// NodeID returns the graph identity for a package directory.
func NodeID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return filepath.Clean(abs)
}

// ScanImports builds an ImportGraph by parsing the import clauses of every
// Go file under root. Only intra-module imports (those under modulePath)
// become edges; the standard library and third-party modules are not
// reload candidates. Test files are skipped.
func ScanImports(root, modulePath string) (*ImportGraph, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	graph := &ImportGraph{
		files:     make(map[string]string),
		importers: make(map[string][]string),
	}

	fset := token.NewFileSet()
	edges := make(map[string]map[string]struct{}) // target -> importer set

	err = filepath.Walk(rootAbs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			name := info.Name()
			if name == ".git" || name == "node_modules" || name == ".hotbridge" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			// Unparseable files still belong to their package; the
			// build will surface the real error.
			graph.files[filepath.Clean(path)] = filepath.Dir(path)
			return nil
		}

		dir := filepath.Dir(path)
		graph.files[filepath.Clean(path)] = dir

		for _, imp := range file.Imports {
			target, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				continue
			}
			rel, ok := moduleRelative(target, modulePath)
			if !ok {
				continue
			}
			targetDir := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(rel)))
			if targetDir == dir {
				continue
			}
			set, ok := edges[targetDir]
			if !ok {
				set = make(map[string]struct{})
				edges[targetDir] = set
			}
			set[dir] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for target, set := range edges {
		for importer := range set {
			graph.importers[target] = append(graph.importers[target], importer)
		}
	}

	return graph, nil
}

// moduleRelative resolves an import path to a module-relative directory.
// Returns false for stdlib and third-party imports.
func moduleRelative(importPath, modulePath string) (string, bool) {
	if modulePath == "" {
		return "", false
	}
	if importPath == modulePath {
		return ".", true
	}
	if strings.HasPrefix(importPath, modulePath+"/") {
		return strings.TrimPrefix(importPath, modulePath+"/"), true
	}
	return "", false
}

// ReadModulePath extracts the module directive from a project's go.mod.
func ReadModulePath(projectDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(projectDir, "go.mod"))
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "module ")), nil
		}
	}

	return "", nil
}
