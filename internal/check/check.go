// Package check runs consistency verification over a chapter scope: a
// deterministic rule family that always runs, and an optional semantic
// family delegated to an external analysis collaborator. Results merge into
// one report; a failed collaborator call degrades the report instead of
// failing the checkpoint.
package check

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/memory"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// ChapterText pairs a roster entry with its draft text and the character
// states the draft asserts.
type ChapterText struct {
	Chapter model.Chapter
	Text    string
	Facts   map[string]model.CharacterState
}

// Analyzer is the external semantic-analysis capability. Implementations
// must honor ctx cancellation; any failure is treated as collaborator
// unavailability and triggers a degraded report.
type Analyzer interface {
	Analyze(ctx context.Context, digest *model.Digest, chapters []ChapterText, taxonomy []model.Category) ([]model.ConsistencyIssue, error)
}

// FactSource is the read-only slice of the memory store the checker needs.
// Checks never write: cancelling an in-flight checkpoint leaves the store
// untouched.
type FactSource interface {
	CharacterState(ctx context.Context, charID string, asOf int) (model.CharacterState, error)
	OverdueForeshadowing(ctx context.Context, current, threshold int) ([]model.ForeshadowingItem, error)
	Summarize(ctx context.Context, rng model.ChapterRange, caps memory.DigestCaps) (*model.Digest, error)
}

// Checker runs one scope at a time.
type Checker struct {
	store    FactSource
	analyzer Analyzer // nil disables the semantic family
	cfg      config.Check
	caps     memory.DigestCaps
	timeout  time.Duration
}

// New builds a checker. Pass a nil analyzer to run rule checks only.
func New(store FactSource, analyzer Analyzer, cfg config.Config) *Checker {
	return &Checker{
		store:    store,
		analyzer: analyzer,
		cfg:      cfg.Check,
		caps: memory.DigestCaps{
			MaxCharacters:    cfg.Digest.MaxCharacters,
			MaxForeshadowing: cfg.Digest.MaxForeshadowing,
			MaxTimeline:      cfg.Digest.MaxTimeline,
			MaxSummaries:     cfg.Digest.MaxSummaries,
		},
		timeout: time.Duration(cfg.Collaborator.TimeoutSeconds) * time.Second,
	}
}

// ruleResult is the outcome of one named rule check.
type ruleResult struct {
	id     string
	issues []model.ConsistencyIssue
}

// failed reports whether the check produced a critical finding.
func (r ruleResult) failed() bool {
	for _, is := range r.issues {
		if is.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

// Run executes one scope over the given chapters and returns its report.
// overall pass is the AND of the checks marked required for the scope;
// non-required findings never block.
func (c *Checker) Run(ctx context.Context, scope model.Scope, rng model.ChapterRange, chapters []ChapterText) (*model.ConsistencyReport, error) {
	if !scope.Valid() {
		return nil, errs.New(errs.CodeValidation, "unknown scope %q", scope)
	}

	results := []ruleResult{
		c.checkWordCount(chapters),
		c.checkPOV(chapters),
		c.checkTerminology(chapters),
	}
	contradictions, err := c.checkContradictions(ctx, chapters)
	if err != nil {
		return nil, err
	}
	results = append(results, contradictions)
	due, err := c.checkForeshadowingDue(ctx, rng)
	if err != nil {
		return nil, err
	}
	results = append(results, due)

	var ruleIssues []model.ConsistencyIssue
	failedChecks := map[string]bool{}
	for _, r := range results {
		ruleIssues = append(ruleIssues, r.issues...)
		if r.failed() {
			failedChecks[r.id] = true
		}
	}

	semanticIssues, degraded := c.runSemantic(ctx, rng, chapters)

	report := &model.ConsistencyReport{
		ID:        uuid.NewString(),
		Scope:     scope,
		Range:     rng,
		Issues:    mergeIssues(ruleIssues, semanticIssues, c.cfg.DedupSimilarity),
		Degraded:  degraded,
		CreatedAt: time.Now().UTC(),
	}

	report.Pass = true
	for _, id := range c.cfg.RequiredFor(string(scope)) {
		if failedChecks[id] {
			report.Pass = false
			break
		}
	}
	return report, nil
}

// runSemantic delegates to the analyzer with a bounded digest. Failure,
// timeout, or malformed output yields no issues and a degraded flag; it
// never fails the checkpoint.
func (c *Checker) runSemantic(ctx context.Context, rng model.ChapterRange, chapters []ChapterText) ([]model.ConsistencyIssue, bool) {
	if c.analyzer == nil {
		return nil, false
	}

	actx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	digest, err := c.store.Summarize(actx, rng, c.caps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[check] digest failed, skipping semantic pass: %v\n", err)
		return nil, true
	}

	issues, err := c.analyzer.Analyze(actx, digest, chapters, model.Categories())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[check] semantic analysis unavailable: %v\n", err)
		return nil, true
	}

	valid := issues[:0]
	for _, is := range issues {
		if !is.Category.Valid() || !is.Severity.Valid() || is.Description == "" || !rng.Contains(is.Chapter) {
			fmt.Fprintf(os.Stderr, "[check] dropping malformed semantic issue %+v\n", is)
			continue
		}
		is.Origin = model.OriginSemantic
		valid = append(valid, is)
	}
	return valid, false
}

// sortIssues orders severity desc then chapter asc, stable within ties.
func sortIssues(issues []model.ConsistencyIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity.Rank() != issues[j].Severity.Rank() {
			return issues[i].Severity.Rank() > issues[j].Severity.Rank()
		}
		return issues[i].Chapter < issues[j].Chapter
	})
}
