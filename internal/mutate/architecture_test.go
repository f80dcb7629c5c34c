package mutate

import (
	"testing"

	"catalogcore/testutil"
)

func TestMutateDoesNotImportHost(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.HostImportForbidden, "the mutation engine must not depend on hosting packages")
}
