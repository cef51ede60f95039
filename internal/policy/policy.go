// Package policy evaluates per-document and per-directory exclusion rules.
package policy

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/obridge/internal/models"
)

// ExcludedEntity is one exclusion rule keyed by document name or directory
// path prefix.
//
// CanLinkFromOutside controls whether the entity's names may become link
// targets in other documents. CanBeLinked controls whether the entity's own
// bodies may be rewritten.
type ExcludedEntity struct {
	Name               string `json:"name"`
	CanLinkFromOutside bool   `json:"canLinkFromOutside"`
	CanBeLinked        bool   `json:"canBeLinked"`
}

// Validate validates the entity.
func (e ExcludedEntity) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
	)
}

// Policy is the full exclusion set. The zero value excludes nothing.
type Policy struct {
	ExcludedFiles []ExcludedEntity `json:"excludedFiles"`
	ExcludedDirs  []ExcludedEntity `json:"excludedDirs"`
}

// Validate checks every entity and rejects duplicate names per list.
func (p *Policy) Validate() error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.ExcludedFiles, validation.By(unique)),
		validation.Field(&p.ExcludedDirs, validation.By(unique)),
	); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

func unique(value any) error {
	list, _ := value.([]ExcludedEntity)
	seen := make(map[string]struct{}, len(list))
	for _, e := range list {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("duplicate entry %q", e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	return Policy{
		ExcludedFiles: cloneList(p.ExcludedFiles),
		ExcludedDirs:  cloneList(p.ExcludedDirs),
	}
}

func cloneList(l []ExcludedEntity) []ExcludedEntity {
	if l == nil {
		return nil
	}
	return append(make([]ExcludedEntity, 0, len(l)), l...)
}

// IsExcludedFile reports whether name has a file rule.
func (p Policy) IsExcludedFile(name string) bool {
	return indexOf(p.ExcludedFiles, name) >= 0
}

// IsExcludedDir reports whether path falls under any directory rule.
func (p Policy) IsExcludedDir(path string) bool {
	for _, d := range p.ExcludedDirs {
		if strings.HasPrefix(path, d.Name) {
			return true
		}
	}
	return false
}

// CanLinkFromOutside reports whether a document with the given name and path
// may appear as a link target in other documents.
func (p Policy) CanLinkFromOutside(name, path string) bool {
	return p.allows(name, path, func(e ExcludedEntity) bool { return e.CanLinkFromOutside })
}

// CanBeLinked reports whether the body of the document with the given name
// and path may be rewritten.
func (p Policy) CanBeLinked(name, path string) bool {
	return p.allows(name, path, func(e ExcludedEntity) bool { return e.CanBeLinked })
}

func (p Policy) allows(name, path string, flag func(ExcludedEntity) bool) bool {
	if i := indexOf(p.ExcludedFiles, name); i >= 0 && !flag(p.ExcludedFiles[i]) {
		return false
	}
	for _, d := range p.ExcludedDirs {
		if strings.HasPrefix(path, d.Name) && !flag(d) {
			return false
		}
	}
	return true
}

// Lookup returns the rule stored for name under kind.
func (p Policy) Lookup(kind models.Kind, name string) (ExcludedEntity, bool) {
	list := p.list(kind)
	if i := indexOf(*list, name); i >= 0 {
		return (*list)[i], true
	}
	return ExcludedEntity{}, false
}

// ExcludeFile adds a default file rule. It returns false when name is
// already excluded.
func (p *Policy) ExcludeFile(name string) bool {
	if p.IsExcludedFile(name) {
		return false
	}
	p.ExcludedFiles = append(p.ExcludedFiles, ExcludedEntity{Name: name})
	return true
}

// UnexcludeFile removes the file rule for name.
func (p *Policy) UnexcludeFile(name string) bool {
	return remove(&p.ExcludedFiles, name)
}

// ExcludeDir adds a default directory rule. It returns false when path is
// already covered by a directory rule.
func (p *Policy) ExcludeDir(path string) bool {
	if p.IsExcludedDir(path) {
		return false
	}
	p.ExcludedDirs = append(p.ExcludedDirs, ExcludedEntity{Name: path})
	return true
}

// UnexcludeDir removes the directory rule stored exactly under path.
func (p *Policy) UnexcludeDir(path string) bool {
	return remove(&p.ExcludedDirs, path)
}

// Exclude dispatches on the entry kind: files are keyed by name,
// directories by path.
func (p *Policy) Exclude(e models.Entry) bool {
	if e.IsFile() {
		return p.ExcludeFile(e.Name)
	}
	return p.ExcludeDir(e.Path)
}

// Unexclude is the inverse of Exclude.
func (p *Policy) Unexclude(e models.Entry) bool {
	if e.IsFile() {
		return p.UnexcludeFile(e.Name)
	}
	return p.UnexcludeDir(e.Path)
}

// SetFlags updates the flags of an existing rule.
func (p *Policy) SetFlags(kind models.Kind, name string, canLinkFromOutside, canBeLinked bool) bool {
	list := p.list(kind)
	i := indexOf(*list, name)
	if i < 0 {
		return false
	}
	(*list)[i].CanLinkFromOutside = canLinkFromOutside
	(*list)[i].CanBeLinked = canBeLinked
	return true
}

func (p *Policy) list(kind models.Kind) *[]ExcludedEntity {
	if kind == models.KindDirectory {
		return &p.ExcludedDirs
	}
	return &p.ExcludedFiles
}

func indexOf(list []ExcludedEntity, name string) int {
	for i, e := range list {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func remove(list *[]ExcludedEntity, name string) bool {
	i := indexOf(*list, name)
	if i < 0 {
		return false
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	return true
}
