package dev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hotbridge-dev/hotbridge/pkg/gateway"
)

// writeProject lays out a small module:
//
//	api/handler.go       imports example.com/demo/internal/greet
//	internal/greet/...   leaf package
//	other/other.go       unrelated package
func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"go.mod": "module example.com/demo\n\ngo 1.23\n",
		"api/handler.go": `package api

import "example.com/demo/internal/greet"

var _ = greet.Hello
`,
		"internal/greet/greet.go": `package greet

func Hello() string { return "hi" }
`,
		"other/other.go": `package other

func Unrelated() {}
`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReadModulePath(t *testing.T) {
	dir := writeProject(t)
	mod, err := ReadModulePath(dir)
	if err != nil {
		t.Fatalf("ReadModulePath: %v", err)
	}
	if mod != "example.com/demo" {
		t.Errorf("module = %q", mod)
	}
}

func TestScanImports_Edges(t *testing.T) {
	dir := writeProject(t)
	graph, err := ScanImports(dir, "example.com/demo")
	if err != nil {
		t.Fatalf("ScanImports: %v", err)
	}

	greetFile := filepath.Join(dir, "internal", "greet", "greet.go")
	nodes := graph.NodesFor(greetFile)
	if len(nodes) != 1 {
		t.Fatalf("NodesFor(greet.go) = %v", nodes)
	}

	importers := graph.ImportersOf(nodes[0])
	apiDir := NodeID(filepath.Join(dir, "api"))
	found := false
	for _, imp := range importers {
		if imp == apiDir {
			found = true
		}
	}
	if !found {
		t.Errorf("ImportersOf(greet) = %v, want to contain %q", importers, apiDir)
	}
}

func TestScanImports_UnknownFileHasNoNodes(t *testing.T) {
	dir := writeProject(t)
	graph, err := ScanImports(dir, "example.com/demo")
	if err != nil {
		t.Fatalf("ScanImports: %v", err)
	}
	if nodes := graph.NodesFor(filepath.Join(dir, "README.md")); len(nodes) != 0 {
		t.Errorf("NodesFor(README.md) = %v", nodes)
	}
}

func TestScanImports_DrivesInvalidation(t *testing.T) {
	dir := writeProject(t)
	graph, err := ScanImports(dir, "example.com/demo")
	if err != nil {
		t.Fatalf("ScanImports: %v", err)
	}

	entry := NodeID(filepath.Join(dir, "api"))

	// A dependency of the entry package invalidates it.
	greetFile := filepath.Join(dir, "internal", "greet", "greet.go")
	if !gateway.IsAffected(greetFile, graph, entry) {
		t.Error("greet change should affect the entry module")
	}

	// The entry package itself trivially invalidates.
	handlerFile := filepath.Join(dir, "api", "handler.go")
	if !gateway.IsAffected(handlerFile, graph, entry) {
		t.Error("entry change should affect the entry module")
	}

	// An unrelated package does not.
	otherFile := filepath.Join(dir, "other", "other.go")
	if gateway.IsAffected(otherFile, graph, entry) {
		t.Error("unrelated change should not affect the entry module")
	}
}

func TestScanImports_SkipsTestFiles(t *testing.T) {
	dir := writeProject(t)
	testFile := filepath.Join(dir, "other", "other_test.go")
	if err := os.WriteFile(testFile, []byte("package other\n"), 0644); err != nil {
		t.Fatal(err)
	}

	graph, err := ScanImports(dir, "example.com/demo")
	if err != nil {
		t.Fatalf("ScanImports: %v", err)
	}
	if nodes := graph.NodesFor(testFile); len(nodes) != 0 {
		t.Errorf("test file should not be a graph node, got %v", nodes)
	}
}
