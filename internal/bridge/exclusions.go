package bridge

import (
	"context"
	"errors"
	"fmt"
	pathpkg "path"
	"path/filepath"
	"strings"

	"github.com/starford/obridge/internal/apperr"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/settings"
)

// ExclusionResult reports the outcome of an exclude or unexclude action.
type ExclusionResult struct {
	Entry   models.Entry `json:"entry"`
	Changed bool         `json:"changed"`
	Message string       `json:"message"`
}

// Exclude adds a default rule for the vault entry at path. Files are keyed
// by name and directories by path.
func (s *Service) Exclude(_ context.Context, path string) (ExclusionResult, error) {
	e, err := s.stat(path)
	if err != nil {
		return ExclusionResult{}, err
	}
	changed, err := s.update(func(v *settings.Settings) (bool, error) {
		return v.Exclude(e), nil
	})
	if err != nil {
		return ExclusionResult{}, err
	}

	res := ExclusionResult{Entry: e, Changed: changed}
	switch {
	case changed:
		res.Message = fmt.Sprintf("Excluded %s from oBridge.", key(e))
	case e.IsFile():
		res.Message = fmt.Sprintf("File: %s is already excluded from oBridge.", key(e))
	default:
		res.Message = fmt.Sprintf("Directory: %s is already excluded from oBridge.", key(e))
	}
	s.notifier.Notify(res.Message)
	return res, nil
}

// Unexclude removes the rule for the vault entry at path. Rules for entries
// that no longer exist are still removable: a path ending in .md is taken as
// a document, anything else as a directory.
func (s *Service) Unexclude(_ context.Context, path string) (ExclusionResult, error) {
	e, err := s.stat(path)
	missing := errors.Is(err, apperr.ErrNotFound)
	switch {
	case missing:
		e = missingEntry(path)
	case err != nil:
		return ExclusionResult{}, err
	}
	changed, err := s.update(func(v *settings.Settings) (bool, error) {
		return v.Unexclude(e), nil
	})
	if err != nil {
		return ExclusionResult{}, err
	}
	if missing && !changed {
		return ExclusionResult{}, apperr.ErrNotFound
	}

	res := ExclusionResult{Entry: e, Changed: changed}
	if changed {
		res.Message = fmt.Sprintf("Included %s in oBridge again.", key(e))
	} else {
		res.Message = fmt.Sprintf("%s is not excluded from oBridge.", key(e))
	}
	s.notifier.Notify(res.Message)
	return res, nil
}

// SetFlags changes the link-direction flags of an existing rule.
func (s *Service) SetFlags(_ context.Context, kind models.Kind, name string, canLinkFromOutside, canBeLinked bool) error {
	_, err := s.update(func(v *settings.Settings) (bool, error) {
		e, ok := v.Lookup(kind, name)
		if !ok {
			return false, apperr.ErrNotFound
		}
		if e.CanLinkFromOutside == canLinkFromOutside && e.CanBeLinked == canBeLinked {
			return false, nil
		}
		return v.SetFlags(kind, name, canLinkFromOutside, canBeLinked), nil
	})
	return err
}

// SetAddAliasToSelf toggles self links.
func (s *Service) SetAddAliasToSelf(_ context.Context, enabled bool) error {
	_, err := s.update(func(v *settings.Settings) (bool, error) {
		if v.AddAliasToSelf == enabled {
			return false, nil
		}
		v.AddAliasToSelf = enabled
		return true, nil
	})
	return err
}

// ReplaceSettings validates and stores a complete settings value.
func (s *Service) ReplaceSettings(_ context.Context, next settings.Settings) (settings.Settings, error) {
	if err := next.Validate(); err != nil {
		return settings.Settings{}, err
	}
	if _, err := s.update(func(v *settings.Settings) (bool, error) {
		*v = next.Clone()
		return true, nil
	}); err != nil {
		return settings.Settings{}, err
	}
	return s.Settings(), nil
}

// update persists a settings mutation and makes it active.
func (s *Service) update(fn func(*settings.Settings) (bool, error)) (bool, error) {
	v, changed, err := s.settings.Update(fn)
	if err != nil {
		return false, err
	}
	s.ApplySettings(v)
	return changed, nil
}

func missingEntry(p string) models.Entry {
	p = pathpkg.Clean(strings.TrimPrefix(filepath.ToSlash(p), "/"))
	base := pathpkg.Base(p)
	if strings.HasSuffix(base, ".md") {
		return models.Entry{Path: p, Name: strings.TrimSuffix(base, ".md"), Kind: models.KindFile}
	}
	return models.Entry{Path: p, Name: base, Kind: models.KindDirectory}
}

func key(e models.Entry) string {
	if e.IsFile() {
		return e.Name
	}
	return e.Path
}
