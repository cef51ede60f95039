package linker

import (
	"log/slog"

	"github.com/starford/obridge/internal/frontmatter"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/policy"
	"github.com/starford/obridge/internal/storage"
)

// Options tune a link pass.
type Options struct {
	// AddAliasToSelf links a document's own names inside its body.
	AddAliasToSelf bool
	// DryRun computes the result without writing documents.
	DryRun bool
}

// Summary describes a link pass.
type Summary struct {
	// Substitutions counts (document, alias) pairs that changed a body.
	Substitutions int `json:"substitutions"`
	// Links counts inserted link constructs.
	Links int `json:"links"`
	// Documents counts rewritten documents.
	Documents int `json:"documents"`
	// Changed lists the paths of rewritten documents in store order.
	Changed []string `json:"changed"`
}

// Link rewrites every document the policy allows, using the aliases from
// snap plus bare-name identities for unscanned documents. Front matter is
// never touched. Snapshot records whose document is gone are ignored.
// Store failures abort the pass; documents already written stay written.
func Link(store storage.Provider, snap models.Snapshot, pol policy.Policy, opts Options, logger *slog.Logger) (Summary, error) {
	sum := Summary{Changed: []string{}}

	docs, err := store.List("")
	if err != nil {
		return sum, err
	}

	live := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		live[d.Path] = struct{}{}
	}
	current := make(models.Snapshot, 0, len(snap))
	for _, r := range snap {
		if _, ok := live[r.Path]; !ok {
			logger.Debug("link: skipping stale record", slog.String("path", r.Path))
			continue
		}
		current = append(current, r)
	}

	table := BuildTable(current, pol)
	AddIdentities(table, docs, current, pol)
	m := NewMatcher(table)

	for _, d := range docs {
		if !pol.CanBeLinked(d.Name, d.Path) {
			logger.Debug("link: excluded", slog.String("path", d.Path))
			continue
		}
		data, err := store.Read(d.Path)
		if err != nil {
			return sum, err
		}
		prefix, body := frontmatter.Split(string(data))
		res := m.Rewrite(body, d.Name, opts.AddAliasToSelf)
		if !res.Changed() {
			continue
		}
		if !opts.DryRun {
			if err := store.Write(d.Path, []byte(prefix+res.Text)); err != nil {
				return sum, err
			}
		}
		sum.Substitutions += res.Pairs
		sum.Links += res.Links
		sum.Documents++
		sum.Changed = append(sum.Changed, d.Path)
		logger.Debug("link: rewrote", slog.String("path", d.Path), slog.Int("links", res.Links))
	}
	return sum, nil
}
