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
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog errors
var (
	ErrUnknownTemplate   = errors.New("unknown role template")
	ErrUnknownPermission = errors.New("unknown permission")
	ErrInvalidCatalog    = errors.New("invalid permission catalog")
)

//go:embed catalog.yaml
var catalogYAML []byte

// Permission describes one catalog entry.
type Permission struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Dependencies []string `yaml:"dependencies"`
	// Anonymous marks permissions that may be granted to the
	// Unauthenticated role.
	Anonymous bool `yaml:"anonymous"`
}

type templateDoc struct {
	All         bool     `yaml:"all"`
	Permissions []string `yaml:"permissions"`
}

type catalogDoc struct {
	Version     int                    `yaml:"version"`
	Permissions []Permission           `yaml:"permissions"`
	Templates   map[string]templateDoc `yaml:"templates"`
}

// Catalog is the immutable permission universe plus role templates.
// All accessors return copies, so a Catalog is safe for concurrent use.
type Catalog struct {
	version     int
	permissions map[string]Permission
	all         Set
	anonymous   Set
	closure     map[string]Set
	templates   map[string]Set
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("rbac: embedded catalog: %v", err))
	}
	return c
})

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	return defaultCatalog()
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if doc.Version <= 0 {
		return nil, fmt.Errorf("%w: version must be positive", ErrInvalidCatalog)
	}

	c := &Catalog{
		version:     doc.Version,
		permissions: make(map[string]Permission, len(doc.Permissions)),
		all:         make(Set, len(doc.Permissions)),
		anonymous:   make(Set),
		closure:     make(map[string]Set, len(doc.Permissions)),
		templates:   make(map[string]Set, len(doc.Templates)),
	}

	for _, p := range doc.Permissions {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: permission without name", ErrInvalidCatalog)
		}
		if _, dup := c.permissions[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrInvalidCatalog, p.Name)
		}
		c.permissions[p.Name] = p
		c.all.Add(p.Name)
		if p.Anonymous {
			c.anonymous.Add(p.Name)
		}
	}

	for _, p := range doc.Permissions {
		for _, dep := range p.Dependencies {
			if !c.all.Has(dep) {
				return nil, fmt.Errorf("%w: %s depends on unknown permission %q", ErrInvalidCatalog, p.Name, dep)
			}
		}
	}

	for name := range c.permissions {
		closure, err := c.resolve(name, map[string]bool{})
		if err != nil {
			return nil, err
		}
		c.closure[name] = closure
	}

	for name, t := range doc.Templates {
		set := make(Set)
		if t.All {
			set = c.all.Clone()
		}
		for _, p := range t.Permissions {
			if !c.all.Has(p) {
				return nil, fmt.Errorf("%w: template %s references unknown permission %q", ErrInvalidCatalog, name, p)
			}
			set.Add(p)
		}
		// The Unauthenticated set is exactly what it lists. Expanding it
		// would hand visitors every prerequisite, e.g. issue:view with
		// issue:create.
		if name != TemplateUnauthenticated {
			set = c.WithDependencies(set)
		}
		c.templates[name] = set
	}

	for _, required := range []string{TemplateAdmin, TemplateUnauthenticated} {
		if _, ok := c.templates[required]; !ok {
			return nil, fmt.Errorf("%w: missing %s template", ErrInvalidCatalog, required)
		}
	}
	if !c.templates[TemplateAdmin].Equal(c.all) {
		return nil, fmt.Errorf("%w: %s template must cover the whole catalog", ErrInvalidCatalog, TemplateAdmin)
	}
	if extra := c.templates[TemplateUnauthenticated].Difference(c.anonymous); extra.Len() > 0 {
		return nil, fmt.Errorf("%w: %s template grants non-anonymous permissions %v",
			ErrInvalidCatalog, TemplateUnauthenticated, extra.Sorted())
	}

	return c, nil
}

// resolve computes the transitive dependencies of name, failing on cycles.
func (c *Catalog) resolve(name string, visiting map[string]bool) (Set, error) {
	if visiting[name] {
		return nil, fmt.Errorf("%w: dependency cycle through %q", ErrInvalidCatalog, name)
	}
	if done, ok := c.closure[name]; ok {
		return done, nil
	}
	visiting[name] = true
	defer delete(visiting, name)

	out := make(Set)
	for _, dep := range c.permissions[name].Dependencies {
		out.Add(dep)
		sub, err := c.resolve(dep, visiting)
		if err != nil {
			return nil, err
		}
		for d := range sub {
			out.Add(d)
		}
	}
	return out, nil
}

// Version returns the catalog document version.
func (c *Catalog) Version() int { return c.version }

// ListAllPermissions returns every permission name in the catalog.
func (c *Catalog) ListAllPermissions() Set {
	return c.all.Clone()
}

// Permissions returns catalog entries in name order.
func (c *Catalog) Permissions() []Permission {
	out := make([]Permission, 0, len(c.permissions))
	for _, name := range c.all.Sorted() {
		out = append(out, c.permissions[name])
	}
	return out
}

// Has reports whether name is a catalog permission.
func (c *Catalog) Has(name string) bool {
	return c.all.Has(name)
}

// Describe returns the catalog entry for name.
func (c *Catalog) Describe(name string) (Permission, error) {
	p, ok := c.permissions[name]
	if !ok {
		return Permission{}, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
	}
	return p, nil
}

// AnonymousEligible reports whether name may be granted to anonymous visitors.
func (c *Catalog) AnonymousEligible(name string) bool {
	return c.anonymous.Has(name)
}

// AnonymousPermissions returns every anonymous-eligible permission.
func (c *Catalog) AnonymousPermissions() Set {
	return c.anonymous.Clone()
}

// PermissionsForTemplate returns the dependency-closed permission set of a
// role template.
func (c *Catalog) PermissionsForTemplate(name string) (Set, error) {
	set, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return set.Clone(), nil
}

// Templates returns the template names in lexical order.
func (c *Catalog) Templates() []string {
	names := make(Set, len(c.templates))
	for n := range c.templates {
		names.Add(n)
	}
	return names.Sorted()
}

// DependenciesOf returns the transitive prerequisites of a permission.
// Unknown names have no dependencies.
func (c *Catalog) DependenciesOf(name string) Set {
	if deps, ok := c.closure[name]; ok {
		return deps.Clone()
	}
	return make(Set)
}

// WithDependencies returns set extended with every prerequisite of its
// members. Role editors call this before persisting permissions.
func (c *Catalog) WithDependencies(set Set) Set {
	out := set.Clone()
	for name := range set {
		for dep := range c.closure[name] {
			out.Add(dep)
		}
	}
	return out
}

// Validate checks that every name is a catalog permission.
func (c *Catalog) Validate(names ...string) error {
	for _, n := range names {
		if !c.all.Has(n) {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, n)
		}
	}
	return nil
}
