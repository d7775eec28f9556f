package domain_test

import (
	"testing"

	"tasktracker/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"the domain model is shared by every layer and must not depend on implementations")
}
