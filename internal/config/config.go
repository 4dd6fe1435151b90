// Package config handles the per-project novelkeeper.yaml file and
// environment overrides for collaborator credentials.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
)

// FileName is the project configuration file written by init.
const FileName = "novelkeeper.yaml"

const defaultConfigYAML = `# novelkeeper project configuration
version: 1

schedule:
  minor_interval: 10
  major_interval: 50
  # volumes:
  #   - number: 1
  #     first_chapter: 1
  #     last_chapter: 120

check:
  min_words: 2500
  max_words: 5000
  overdue_threshold: 30
  dedup_similarity: 0.6
  # vocabulary:
  #   - term: soulforging
  #     first_chapter: 12

revision:
  max_attempts: 3
  max_warnings: 5

digest:
  max_characters: 10
  max_foreshadowing: 20
  max_timeline: 10
  max_summaries: 5

collaborator:
  model: gpt-4o-mini
  timeout_seconds: 60
  semantic_enabled: true
`

// Volume declares one volume's chapter span.
type Volume struct {
	Number       int `yaml:"number"`
	FirstChapter int `yaml:"first_chapter"`
	LastChapter  int `yaml:"last_chapter"`
}

// Schedule configures the checkpoint policy.
type Schedule struct {
	MinorInterval int      `yaml:"minor_interval"`
	MajorInterval int      `yaml:"major_interval"`
	Volumes       []Volume `yaml:"volumes,omitempty"`
}

// Term is one controlled-vocabulary entry: the term may not appear before
// its first-use chapter.
type Term struct {
	Term         string `yaml:"term"`
	FirstChapter int    `yaml:"first_chapter"`
}

// Check configures the deterministic rule checks.
type Check struct {
	MinWords         int                 `yaml:"min_words"`
	MaxWords         int                 `yaml:"max_words"`
	OverdueThreshold int                 `yaml:"overdue_threshold"`
	DedupSimilarity  float64             `yaml:"dedup_similarity"`
	Vocabulary       []Term              `yaml:"vocabulary,omitempty"`
	Required         map[string][]string `yaml:"required,omitempty"`
}

// RequiredFor returns the check ids whose failure blocks the given scope.
func (c Check) RequiredFor(scope string) []string {
	if ids, ok := c.Required[scope]; ok {
		return ids
	}
	return defaultRequired[scope]
}

var defaultRequired = map[string][]string{
	"per_chapter": {"word_count", "pov", "contradiction"},
	"minor":       {"word_count", "pov", "contradiction", "terminology"},
	"major":       {"word_count", "pov", "contradiction", "terminology", "foreshadowing_due"},
	"volume_end":  {"contradiction", "foreshadowing_due"},
}

// Revision configures the revision loop.
type Revision struct {
	MaxAttempts int `yaml:"max_attempts"`
	MaxWarnings int `yaml:"max_warnings"`
}

// Digest configures the count-based caps of the scope digest.
type Digest struct {
	MaxCharacters    int `yaml:"max_characters"`
	MaxForeshadowing int `yaml:"max_foreshadowing"`
	MaxTimeline      int `yaml:"max_timeline"`
	MaxSummaries     int `yaml:"max_summaries"`
}

// Collaborator configures the external LLM collaborators. Credentials come
// from the environment, never from the project file.
type Collaborator struct {
	Model           string `yaml:"model" env:"NOVELKEEPER_MODEL"`
	BaseURL         string `yaml:"base_url,omitempty" env:"NOVELKEEPER_BASE_URL"`
	APIKey          string `yaml:"-" env:"NOVELKEEPER_API_KEY"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" env:"NOVELKEEPER_TIMEOUT_SECONDS"`
	SemanticEnabled bool   `yaml:"semantic_enabled"`
}

// Config models novelkeeper.yaml.
type Config struct {
	Version      int          `yaml:"version"`
	Schedule     Schedule     `yaml:"schedule"`
	Check        Check        `yaml:"check"`
	Revision     Revision     `yaml:"revision"`
	Digest       Digest       `yaml:"digest"`
	Collaborator Collaborator `yaml:"collaborator"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: 1,
		Schedule: Schedule{
			MinorInterval: 10,
			MajorInterval: 50,
		},
		Check: Check{
			MinWords:         2500,
			MaxWords:         5000,
			OverdueThreshold: 30,
			DedupSimilarity:  0.6,
		},
		Revision: Revision{
			MaxAttempts: 3,
			MaxWarnings: 5,
		},
		Digest: Digest{
			MaxCharacters:    10,
			MaxForeshadowing: 20,
			MaxTimeline:      10,
			MaxSummaries:     5,
		},
		Collaborator: Collaborator{
			Model:           "gpt-4o-mini",
			TimeoutSeconds:  60,
			SemanticEnabled: true,
		},
	}
}

// Load reads the project config from dir, applies environment overrides,
// and validates it. A missing file yields the defaults plus env overrides.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := unmarshalStrict(b, &cfg); err != nil {
			return cfg, errs.Wrap(errs.CodeValidation, err, "parse %s", FileName)
		}
	}

	if err := env.Parse(&cfg.Collaborator); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// WriteDefault writes the commented default config file into dir. It fails
// if the file already exists.
func WriteDefault(dir string) error {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return errs.New(errs.CodeDuplicate, "%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// Validate rejects out-of-range policy values.
func (c Config) Validate() error {
	if c.Schedule.MinorInterval <= 0 || c.Schedule.MajorInterval <= 0 {
		return errs.New(errs.CodeValidation, "schedule intervals must be positive")
	}
	if c.Check.MinWords < 0 || c.Check.MaxWords < c.Check.MinWords {
		return errs.New(errs.CodeValidation, "word bounds must satisfy 0 <= min <= max")
	}
	if c.Check.DedupSimilarity < 0 || c.Check.DedupSimilarity > 1 {
		return errs.New(errs.CodeValidation, "dedup_similarity must be in [0,1]")
	}
	if c.Revision.MaxAttempts <= 0 {
		return errs.New(errs.CodeValidation, "revision max_attempts must be positive")
	}
	for _, v := range c.Schedule.Volumes {
		if v.LastChapter < v.FirstChapter || v.FirstChapter <= 0 {
			return errs.New(errs.CodeValidation, "volume %d has invalid chapter span", v.Number)
		}
	}
	return nil
}

// unmarshalStrict decodes YAML rejecting unknown fields.
func unmarshalStrict(b []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(out)
}
