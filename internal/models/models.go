// Package models defines the domain types for obridge.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags a vault entry as a file or a directory.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// ParseKind parses "file" or "directory".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "file":
		return KindFile, nil
	case "directory", "dir":
		return KindDirectory, nil
	}
	return KindFile, fmt.Errorf("unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Entry is a vault entry as reported by the document store.
// Name is the basename without the .md extension for files
// and the last path segment for directories.
type Entry struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// IsFile reports whether the entry is a document.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// AliasRecord is one scanned document with its declared aliases.
// It serializes as {"fileName", "fullFilePath", "data": {"aliases"}}.
type AliasRecord struct {
	Name    string
	Path    string
	Aliases []string
}

// RecordData is the nested payload of a serialized AliasRecord.
type RecordData struct {
	Aliases []string `json:"aliases"`
}

type aliasRecordJSON struct {
	FileName     string     `json:"fileName"`
	FullFilePath string     `json:"fullFilePath"`
	Data         RecordData `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (r AliasRecord) MarshalJSON() ([]byte, error) {
	aliases := r.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return json.Marshal(aliasRecordJSON{
		FileName:     r.Name,
		FullFilePath: r.Path,
		Data:         RecordData{Aliases: aliases},
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *AliasRecord) UnmarshalJSON(b []byte) error {
	var raw aliasRecordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Name = raw.FileName
	r.Path = raw.FullFilePath
	r.Aliases = raw.Data.Aliases
	return nil
}

// Snapshot is the ordered scan result persisted between pipeline runs.
type Snapshot []AliasRecord

// Run is one recorded pipeline execution.
type Run struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Records       int       `json:"records"`
	Substitutions int       `json:"substitutions"`
	Links         int       `json:"links"`
	Documents     int       `json:"documents"`
	Error         string    `json:"error,omitempty"`
}
