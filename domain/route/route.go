// Package route provides route table value types and the pure function that
// derives a table from the set of discovered entity names.
package route

import (
	"net/http"
	"sort"
	"strings"

	"github.com/artpar/tablegate/domain/entity"
)

// TypesPath is the fixed path of the schema-mutation endpoint.
const TypesPath = "/" + entity.ReservedName

// Target identifies which handler a binding dispatches to.
type Target string

const (
	TargetEntity Target = "entity" // generic per-entity handler
	TargetTypes  Target = "types"  // schema-mutation endpoint
)

// Binding maps one (method, path) pair to a handler target.
type Binding struct {
	Method string
	Path   string
	Target Target
	Entity string // set for TargetEntity
}

// Key returns the identity of the binding within a table.
func (b Binding) Key() string {
	return b.Method + " " + b.Path
}

// Rejection records a discovered name that could not be bound.
type Rejection struct {
	Entity string
	Reason string
}

// Table is a complete, immutable route table.
// Bindings are sorted by path then method.
type Table struct {
	Bindings []Binding
	Rejected []Rejection
}

// Build derives the route table for the given entity names.
//
// Each distinct name gets POST /{name}; POST /types is always present.
// Names that would shadow /types or are not a single path segment are
// reported in Rejected instead of being bound.
func Build(names []string) Table {
	seen := make(map[string]bool, len(names)+1)
	var t Table

	add := func(b Binding) {
		if seen[b.Key()] {
			return
		}
		seen[b.Key()] = true
		t.Bindings = append(t.Bindings, b)
	}

	add(Binding{Method: http.MethodPost, Path: TypesPath, Target: TargetTypes})

	rejected := make(map[string]bool)
	for _, name := range names {
		if reason := rejectReason(name); reason != "" {
			if !rejected[name] {
				rejected[name] = true
				t.Rejected = append(t.Rejected, Rejection{Entity: name, Reason: reason})
			}
			continue
		}
		add(Binding{Method: http.MethodPost, Path: "/" + name, Target: TargetEntity, Entity: name})
	}

	sort.Slice(t.Bindings, func(i, j int) bool {
		if t.Bindings[i].Path != t.Bindings[j].Path {
			return t.Bindings[i].Path < t.Bindings[j].Path
		}
		return t.Bindings[i].Method < t.Bindings[j].Method
	})
	sort.Slice(t.Rejected, func(i, j int) bool {
		return t.Rejected[i].Entity < t.Rejected[j].Entity
	})

	return t
}

func rejectReason(name string) string {
	switch {
	case name == "":
		return "empty name"
	case entity.IsReserved(name):
		return "shadows " + TypesPath
	case strings.ContainsAny(name, "/{}*?#% \t\n"):
		return "not a single path segment"
	default:
		return ""
	}
}

// Entities returns the entity names bound in the table, sorted.
func (t Table) Entities() []string {
	var out []string
	for _, b := range t.Bindings {
		if b.Target == TargetEntity {
			out = append(out, b.Entity)
		}
	}
	return out
}

// Lookup returns the binding for method and path, if present.
func (t Table) Lookup(method, path string) (Binding, bool) {
	for _, b := range t.Bindings {
		if b.Method == method && b.Path == path {
			return b, true
		}
	}
	return Binding{}, false
}

// Equal reports whether two tables bind the same (method, path) pairs to
// the same targets.
func (t Table) Equal(other Table) bool {
	if len(t.Bindings) != len(other.Bindings) {
		return false
	}
	for i := range t.Bindings {
		if t.Bindings[i] != other.Bindings[i] {
			return false
		}
	}
	return true
}
