package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Schedule.MinorInterval != 10 || cfg.Schedule.MajorInterval != 50 {
		t.Errorf("unexpected schedule defaults: %+v", cfg.Schedule)
	}
	if cfg.Check.MinWords != 2500 || cfg.Check.MaxWords != 5000 {
		t.Errorf("unexpected word defaults: %+v", cfg.Check)
	}
	if cfg.Revision.MaxAttempts != 3 || cfg.Revision.MaxWarnings != 5 {
		t.Errorf("unexpected revision defaults: %+v", cfg.Revision)
	}
	if cfg.Check.DedupSimilarity != 0.6 {
		t.Errorf("unexpected dedup default: %f", cfg.Check.DedupSimilarity)
	}
}

func TestWriteDefaultThenLoad(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("write: %v", err)
	}
	// second write refuses to clobber
	if err := WriteDefault(dir); !errs.IsCode(err, errs.CodeDuplicate) {
		t.Errorf("expected DUPLICATE, got %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("written defaults differ from built-ins:\n got %+v\nwant %+v", cfg, Default())
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	content := "version: 1\nscheduler:\n  minor_interval: 10\n"
	os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644)

	_, err := Load(dir)
	if !errs.IsCode(err, errs.CodeValidation) {
		t.Fatalf("expected VALIDATION for a misspelled section, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []string{
		"version: 1\nschedule:\n  minor_interval: 0\n",
		"version: 1\ncheck:\n  min_words: 5000\n  max_words: 100\n",
		"version: 1\ncheck:\n  dedup_similarity: 1.5\n",
		"version: 1\nrevision:\n  max_attempts: 0\n",
		"version: 1\nschedule:\n  volumes:\n    - number: 1\n      first_chapter: 10\n      last_chapter: 5\n",
	}
	for _, content := range cases {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644)
		if _, err := Load(dir); !errs.IsCode(err, errs.CodeValidation) {
			t.Errorf("config %q: expected VALIDATION, got %v", content, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NOVELKEEPER_MODEL", "test-model")
	t.Setenv("NOVELKEEPER_API_KEY", "sk-test")
	t.Setenv("NOVELKEEPER_TIMEOUT_SECONDS", "5")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Collaborator.Model != "test-model" {
		t.Errorf("model override lost: %q", cfg.Collaborator.Model)
	}
	if cfg.Collaborator.APIKey != "sk-test" {
		t.Errorf("api key override lost")
	}
	if cfg.Collaborator.TimeoutSeconds != 5 {
		t.Errorf("timeout override lost: %d", cfg.Collaborator.TimeoutSeconds)
	}
}
