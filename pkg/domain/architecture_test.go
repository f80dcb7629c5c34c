package domain

import (
	"strings"
	"testing"

	"catalogcore/testutil"
)

// TestDomainImportsStandardLibraryOnly keeps the domain layer free of module
// and third-party dependencies so every other package can build on it.
func TestDomainImportsStandardLibraryOnly(t *testing.T) {
	nonStdlib := func(path string) bool {
		first := strings.SplitN(path, "/", 2)[0]
		return strings.Contains(first, ".") || first == "catalogcore"
	}
	testutil.AssertNoDirectImports(t, ".", nonStdlib, "domain package must import only the standard library")
}
