// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that the Admin template is exactly the catalog universe.
// Scope: Unit Test
// Security: Admin semantics cannot drift from the catalog
// Expected: PermissionsForTemplate(Admin) equals ListAllPermissions.
// Test Case ID: CAT-01
func TestCatalog_AdminTemplateEqualsCatalog(t *testing.T) {
	c := Default()

	admin, err := c.PermissionsForTemplate(TemplateAdmin)
	require.NoError(t, err)
	assert.True(t, admin.Equal(c.ListAllPermissions()))
}

// TestPurpose: Validates that unknown template names fail with ErrUnknownTemplate.
// Scope: Unit Test
// Security: No implicit grants from typos
// Expected: ErrUnknownTemplate is returned.
// Test Case ID: CAT-02
func TestCatalog_UnknownTemplate(t *testing.T) {
	_, err := Default().PermissionsForTemplate("Owner")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

// TestPurpose: Validates transitive dependency resolution.
// Scope: Unit Test
// Expected: issue:assign pulls in issue:edit, issue:view and member:view.
// Test Case ID: CAT-03
func TestCatalog_DependenciesOf(t *testing.T) {
	c := Default()

	deps := c.DependenciesOf(PermIssueAssign)
	assert.ElementsMatch(t, []string{PermIssueEdit, PermIssueView, PermMemberView}, deps.Sorted())

	assert.Equal(t, 0, c.DependenciesOf(PermIssueView).Len())
	assert.Equal(t, 0, c.DependenciesOf("nope:nope").Len())

	withDeps := c.WithDependencies(NewSet(PermAttachmentCreate))
	assert.ElementsMatch(t, []string{PermAttachmentCreate, PermIssueCreate, PermIssueView}, withDeps.Sorted())
}

// TestPurpose: Validates that the Unauthenticated template only holds anonymous-eligible permissions.
// Scope: Unit Test
// Security: Anonymous visitors never receive member capabilities
// Expected: Every Unauthenticated permission is anonymous-eligible; issue:edit is not; issue:view is opt-in.
// Test Case ID: CAT-04
func TestCatalog_UnauthenticatedTemplateIsAnonymousOnly(t *testing.T) {
	c := Default()

	set, err := c.PermissionsForTemplate(TemplateUnauthenticated)
	require.NoError(t, err)
	assert.True(t, set.Has(PermIssueCreate))
	assert.True(t, set.Has(PermMachineView))
	assert.False(t, set.Has(PermIssueView), "issue:create must not pull issue:view into the anonymous set")
	assert.True(t, c.AnonymousEligible(PermIssueView))
	for p := range set {
		assert.True(t, c.AnonymousEligible(p), p)
	}
	assert.False(t, c.AnonymousEligible(PermIssueEdit))
}

// TestPurpose: Validates that returned sets are copies.
// Scope: Unit Test
// Security: Runtime immutability of the catalog
// Expected: Mutating a returned set does not affect later calls.
// Test Case ID: CAT-05
func TestCatalog_ReturnsCopies(t *testing.T) {
	c := Default()

	all := c.ListAllPermissions()
	before := all.Len()
	all.Add("evil:grant")
	delete(all, PermIssueView)

	again := c.ListAllPermissions()
	assert.Equal(t, before, again.Len())
	assert.True(t, again.Has(PermIssueView))
	assert.False(t, again.Has("evil:grant"))
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown dependency": `
version: 1
permissions:
  - name: a:view
    dependencies: [b:view]
templates:
  Admin: {all: true}
  Unauthenticated: {}
`,
		"cycle": `
version: 1
permissions:
  - name: a:view
    dependencies: [b:view]
  - name: b:view
    dependencies: [a:view]
templates:
  Admin: {all: true}
  Unauthenticated: {}
`,
		"non-anonymous unauthenticated": `
version: 1
permissions:
  - name: a:view
templates:
  Admin: {all: true}
  Unauthenticated: {permissions: [a:view]}
`,
		"missing admin": `
version: 1
permissions:
  - name: a:view
templates:
  Unauthenticated: {}
`,
		"duplicate": `
version: 1
permissions:
  - name: a:view
  - name: a:view
templates:
  Admin: {all: true}
  Unauthenticated: {}
`,
		"no version": `
permissions:
  - name: a:view
templates:
  Admin: {all: true}
  Unauthenticated: {}
`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestSet_Operations(t *testing.T) {
	a := NewSet("x", "y")
	b := NewSet("y", "z")

	assert.Equal(t, []string{"x", "y", "z"}, a.Union(b).Sorted())
	assert.Equal(t, []string{"y"}, a.Intersect(b).Sorted())
	assert.Equal(t, []string{"x"}, a.Difference(b).Sorted())
	assert.True(t, a.Equal(NewSet("y", "x")))
	assert.False(t, a.Equal(b))
	assert.Equal(t, 2, a.Len(), "operations must not mutate the receiver")
}
