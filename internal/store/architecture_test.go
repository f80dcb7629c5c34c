package store

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// The editing core must stay usable without any host: no storage drivers,
// journals, file watching or command line.
var editingCore = []string{
	"catalogcore/pkg/domain",
	"catalogcore/internal/store",
	"catalogcore/internal/resolve",
	"catalogcore/internal/mutate",
	"catalogcore/internal/filter",
	"catalogcore/internal/validate",
	"catalogcore/internal/diff",
	"catalogcore/internal/canon",
}

var hostPackages = []string{
	"catalogcore/internal/cli",
	"catalogcore/internal/core",
	"catalogcore/internal/source",
	"catalogcore/internal/journal",
	"catalogcore/internal/infra",
	"catalogcore/internal/watch",
	"catalogcore/internal/graphview",
	"catalogcore/internal/config",
}

func TestEditingCoreDoesNotImportHost(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, editingCore...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if len(pkgs) != len(editingCore) {
		t.Fatalf("loaded %d packages, want %d", len(pkgs), len(editingCore))
	}

	var violations []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			t.Errorf("%s: %v", pkg.PkgPath, e)
		}
		for importPath := range pkg.Imports {
			for _, host := range hostPackages {
				if importPath == host || strings.HasPrefix(importPath, host+"/") {
					violations = append(violations, pkg.PkgPath+" imports "+importPath)
				}
			}
		}
	}
	sort.Strings(violations)
	for _, v := range violations {
		t.Errorf("%s", v)
	}
}
