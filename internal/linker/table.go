// Package linker builds the alias table and rewrites document bodies.
package linker

import (
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/policy"
)

// Pair maps an alias to the canonical document name it links to.
type Pair struct {
	Alias string `json:"alias"`
	Name  string `json:"name"`
}

// Table is an insertion-ordered alias → canonical name mapping.
// Overwriting an alias replaces its target but keeps its position.
type Table struct {
	order []string
	names map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{names: make(map[string]string)}
}

// Set maps alias to name.
func (t *Table) Set(alias, name string) {
	if alias == "" {
		return
	}
	if _, ok := t.names[alias]; !ok {
		t.order = append(t.order, alias)
	}
	t.names[alias] = name
}

// Get returns the canonical name for alias.
func (t *Table) Get(alias string) (string, bool) {
	name, ok := t.names[alias]
	return name, ok
}

// Len returns the number of aliases.
func (t *Table) Len() int { return len(t.order) }

// Pairs returns the entries in insertion order.
func (t *Table) Pairs() []Pair {
	out := make([]Pair, len(t.order))
	for i, a := range t.order {
		out[i] = Pair{Alias: a, Name: t.names[a]}
	}
	return out
}

// BuildTable folds the snapshot in order. Records whose document may not be
// a link target are skipped whole; otherwise every alias and then the
// record's own name are mapped to the name. Later records win.
func BuildTable(snap models.Snapshot, pol policy.Policy) *Table {
	t := NewTable()
	for _, r := range snap {
		if !pol.CanLinkFromOutside(r.Name, r.Path) {
			continue
		}
		for _, a := range r.Aliases {
			t.Set(a, r.Name)
		}
		t.Set(r.Name, r.Name)
	}
	return t
}

// AddIdentities makes documents that declared no aliases linkable by their
// bare name. Documents already represented in snap are left to the fold.
func AddIdentities(t *Table, docs []models.Entry, snap models.Snapshot, pol policy.Policy) {
	scanned := make(map[string]struct{}, len(snap))
	for _, r := range snap {
		scanned[r.Path] = struct{}{}
	}
	for _, d := range docs {
		if !d.IsFile() {
			continue
		}
		if _, ok := scanned[d.Path]; ok {
			continue
		}
		if !pol.CanLinkFromOutside(d.Name, d.Path) {
			continue
		}
		t.Set(d.Name, d.Name)
	}
}
