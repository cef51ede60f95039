package settings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/obridge/internal/policy"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s := testStore(t)
	v, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.AddAliasToSelf {
		t.Error("addAliasToSelf defaults to false")
	}
	if v.ExcludedFiles == nil || v.ExcludedDirs == nil {
		t.Error("exclusion lists should be non-nil")
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	s := testStore(t)
	raw := `{"excludedFiles":[{"name":"Secret"}],"mySetting":"notes"}`
	if err := os.WriteFile(s.Path(), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	v, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(v.ExcludedFiles) != 1 || v.ExcludedFiles[0].Name != "Secret" {
		t.Fatalf("excludedFiles = %+v", v.ExcludedFiles)
	}
	if v.ExcludedFiles[0].CanLinkFromOutside || v.ExcludedFiles[0].CanBeLinked {
		t.Error("missing flags default to false")
	}
	if v.ExcludedDirs == nil {
		t.Error("excludedDirs should default to empty list")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	s := testStore(t)
	_ = os.WriteFile(s.Path(), []byte("{not json"), 0o644)
	if _, err := s.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	v := Default()
	v.AddAliasToSelf = true
	v.ExcludeDir("private/")
	if err := s.Save(v); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	for _, key := range []string{`"excludedFiles"`, `"excludedDirs"`, `"addAliasToSelf": true`, `"canLinkFromOutside": false`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("saved file missing %s:\n%s", key, data)
		}
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.AddAliasToSelf || !got.IsExcludedDir("private/x.md") {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	s := testStore(t)
	v := Default()
	v.ExcludedFiles = []policy.ExcludedEntity{{Name: ""}}
	if err := s.Save(v); err == nil {
		t.Error("expected validation error")
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("invalid settings must not be written")
	}
}

func TestUpdate(t *testing.T) {
	s := testStore(t)
	v, changed, err := s.Update(func(v *Settings) (bool, error) {
		return v.ExcludeFile("Note"), nil
	})
	if err != nil || !changed {
		t.Fatalf("Update: changed=%v err=%v", changed, err)
	}
	if !v.IsExcludedFile("Note") {
		t.Error("returned settings should include the change")
	}

	_, changed, err = s.Update(func(v *Settings) (bool, error) {
		return v.ExcludeFile("Note"), nil
	})
	if err != nil || changed {
		t.Errorf("second Update: changed=%v err=%v", changed, err)
	}

	stored, _ := s.Load()
	if !stored.IsExcludedFile("Note") {
		t.Error("change was not persisted")
	}
}

func TestWatch_ReloadsOnExternalEdit(t *testing.T) {
	s := testStore(t)
	if err := s.Save(Default()); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Settings
	go s.Watch(ctx, logger, func(v Settings) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(s.Path(), []byte(`{"addAliasToSelf":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		var last Settings
		if n > 0 {
			last = got[n-1]
		}
		mu.Unlock()
		if n > 0 && last.AddAliasToSelf {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Error("watcher did not deliver reloaded settings")
}
