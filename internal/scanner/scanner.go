// Package scanner collects declared aliases from every eligible document.
package scanner

import (
	"log/slog"

	"github.com/starford/obridge/internal/frontmatter"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/policy"
	"github.com/starford/obridge/internal/storage"
)

// Scan walks the store in its iteration order and returns one record per
// document that declares at least one alias. Documents that may not be link
// targets are skipped before their front matter is read. Malformed alias
// declarations count as none; store failures are returned as is.
func Scan(store storage.Provider, pol policy.Policy, logger *slog.Logger) (models.Snapshot, error) {
	docs, err := store.List("")
	if err != nil {
		return nil, err
	}

	out := models.Snapshot{}
	for _, d := range docs {
		if !pol.CanLinkFromOutside(d.Name, d.Path) {
			logger.Debug("scan: excluded", slog.String("path", d.Path))
			continue
		}
		data, err := store.Read(d.Path)
		if err != nil {
			return nil, err
		}
		aliases := frontmatter.Aliases(string(data))
		if len(aliases) == 0 {
			continue
		}
		out = append(out, models.AliasRecord{
			Name:    d.Name,
			Path:    d.Path,
			Aliases: aliases,
		})
	}
	logger.Debug("scan: done", slog.Int("documents", len(docs)), slog.Int("records", len(out)))
	return out, nil
}
