package table

import (
	"fmt"
	"strings"

	"github.com/outerbridge/tcgstorage/uid"
)

// Module is one specification module's contribution to name/UID/table/type
// resolution (spec §4.9). sp scopes a lookup to a particular Security
// Provider's namespace (e.g. C_PIN::MSID resolves differently under the
// Admin SP than under the Locking SP); pass uid.Null for an SP-independent
// lookup.
type Module interface {
	// ModuleName identifies the module for the Collection's ordering/dedup
	// pass (e.g. "Core", "Opal").
	ModuleName() string
	FindName(u uid.UID, sp uid.UID) (string, bool)
	FindUID(name string, sp uid.UID) (uid.UID, bool)
	FindTable(u uid.UID) (*Desc, bool)
	FindType(u uid.UID) (*Type, bool)
}

// Collection is a searchable, ordered union of Modules: FindName/FindUID
// walk the list in order and return the first hit, so more specific
// modules (Feature, then SSC) shadow the generic Core module.
type Collection struct {
	modules []Module
}

// NewCollection builds a Collection from modules, deduplicated by
// ModuleName (first occurrence wins) and otherwise kept in the caller's
// order. Callers should list Feature modules first, then SSC modules,
// then Core, per spec §4.9.
func NewCollection(modules ...Module) *Collection {
	c := &Collection{}
	seen := map[string]bool{}
	for _, m := range modules {
		if seen[m.ModuleName()] {
			continue
		}
		seen[m.ModuleName()] = true
		c.modules = append(c.modules, m)
	}
	return c
}

// FindName returns the first module's name for u, scoped to sp if given.
func (c *Collection) FindName(u uid.UID, sp uid.UID) (string, bool) {
	for _, m := range c.modules {
		if n, ok := m.FindName(u, sp); ok {
			return n, true
		}
	}
	return "", false
}

// FindUID returns the first module's UID for name, scoped to sp if given.
// name is either "Category::Member" or a canonical hex UID
// (AAAA'BBBB'CCCC'DDDD); the latter is parsed directly without
// consulting any module.
func (c *Collection) FindUID(name string, sp uid.UID) (uid.UID, bool) {
	if strings.Contains(name, "'") {
		if u, err := uid.Parse(name); err == nil {
			return u, true
		}
	}
	for _, m := range c.modules {
		if u, ok := m.FindUID(name, sp); ok {
			return u, true
		}
	}
	return uid.Null, false
}

// FindTable returns the first module's TableDesc for u.
func (c *Collection) FindTable(u uid.UID) (*Desc, bool) {
	for _, m := range c.modules {
		if d, ok := m.FindTable(u); ok {
			return d, true
		}
	}
	return nil, false
}

// FindType returns the first module's Type for u.
func (c *Collection) FindType(u uid.UID) (*Type, bool) {
	for _, m := range c.modules {
		if t, ok := m.FindType(u); ok {
			return t, true
		}
	}
	return nil, false
}

// staticModule is a Module backed by plain maps, filled in by
// coreModule/opalModule. Default builds a fresh pair of modules on every
// call. FindTable and FindType return pointers to the module's own Desc
// and Type values, not copies.
type staticModule struct {
	name string

	names     map[string]uid.UID            // unscoped "Category::Member" -> UID
	namesBySP map[uid.UID]map[string]uid.UID // sp-scoped overrides, consulted first

	byUID     map[uid.UID]string
	byUIDBySP map[uid.UID]map[uid.UID]string

	tables map[uid.UID]*Desc
	types  map[uid.UID]*Type
}

func newStaticModule(name string) *staticModule {
	return &staticModule{
		name:      name,
		names:     map[string]uid.UID{},
		namesBySP: map[uid.UID]map[string]uid.UID{},
		byUID:     map[uid.UID]string{},
		byUIDBySP: map[uid.UID]map[uid.UID]string{},
		tables:    map[uid.UID]*Desc{},
		types:     map[uid.UID]*Type{},
	}
}

func (m *staticModule) ModuleName() string { return m.name }

func (m *staticModule) add(category, member string, u uid.UID) {
	name := fmt.Sprintf("%s::%s", category, member)
	m.names[name] = u
	m.byUID[u] = name
}

func (m *staticModule) addScoped(sp uid.UID, category, member string, u uid.UID) {
	name := fmt.Sprintf("%s::%s", category, member)
	if m.namesBySP[sp] == nil {
		m.namesBySP[sp] = map[string]uid.UID{}
	}
	m.namesBySP[sp][name] = u
	if m.byUIDBySP[sp] == nil {
		m.byUIDBySP[sp] = map[uid.UID]string{}
	}
	m.byUIDBySP[sp][u] = name
}

func (m *staticModule) addTable(d *Desc) {
	m.tables[d.UID] = d
	m.add("Table", d.Name, d.UID)
}

func (m *staticModule) addType(key uid.UID, t *Type) {
	m.types[key] = t
}

func (m *staticModule) FindName(u uid.UID, sp uid.UID) (string, bool) {
	if !sp.IsNull() {
		if bySP, ok := m.byUIDBySP[sp]; ok {
			if n, ok := bySP[u]; ok {
				return n, true
			}
		}
	}
	n, ok := m.byUID[u]
	return n, ok
}

func (m *staticModule) FindUID(name string, sp uid.UID) (uid.UID, bool) {
	if !sp.IsNull() {
		if bySP, ok := m.namesBySP[sp]; ok {
			if u, ok := bySP[name]; ok {
				return u, true
			}
		}
	}
	u, ok := m.names[name]
	return u, ok
}

func (m *staticModule) FindTable(u uid.UID) (*Desc, bool) {
	d, ok := m.tables[u]
	return d, ok
}

func (m *staticModule) FindType(u uid.UID) (*Type, bool) {
	t, ok := m.types[u]
	return t, ok
}

// Default returns the standard Core + Opal Collection: every host
// operating against an Opal/Pyrite/Opalite/Ruby Locking-family SSC
// resolves names through this. The Opal module is registered first so
// its SP-specific spellings (and any future per-SSC overrides) shadow
// the generic Core module, matching the Feature-then-SSC-then-Core
// ordering spec §4.9 requires.
func Default() *Collection {
	return NewCollection(opalModule(), coreModule())
}
