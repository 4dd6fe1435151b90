package memory

import (
	"context"
	"sort"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// Summarize builds the bounded digest of a chapter range: character
// projections as of the range end, unresolved foreshadowing planted inside
// or before the range, timeline events inside the range, and issue counts
// by category. Caps are count-based
// so scopes covering hundreds of chapters stay tractable; when truncating,
// low-priority detail goes first.
func (s *SQLiteStore) Summarize(ctx context.Context, rng model.ChapterRange, caps DigestCaps) (*model.Digest, error) {
	if rng.From <= 0 || rng.To < rng.From {
		return nil, errs.New(errs.CodeValidation, "invalid chapter range %d-%d", rng.From, rng.To)
	}

	digest := &model.Digest{
		Range:      rng,
		Characters: map[string]model.CharacterState{},
	}

	// Characters appearing in the range, most recently active kept first.
	ids, err := s.CharacterIDs(ctx, rng)
	if err != nil {
		return nil, err
	}
	if caps.MaxCharacters > 0 && len(ids) > caps.MaxCharacters {
		ids = ids[:caps.MaxCharacters]
	}
	for _, id := range ids {
		state, err := s.CharacterState(ctx, id, rng.To)
		if err != nil {
			return nil, err
		}
		digest.Characters[id] = state
	}

	unresolved, err := s.UnresolvedForeshadowing(ctx, rng.To)
	if err != nil {
		return nil, err
	}
	digest.Unresolved = capForeshadowing(unresolved, caps.MaxForeshadowing)

	timeline, err := s.Timeline(ctx, rng)
	if err != nil {
		return nil, err
	}
	if caps.MaxTimeline > 0 && len(timeline) > caps.MaxTimeline {
		// Keep the most recent story beats; old ones live in summaries.
		timeline = timeline[len(timeline)-caps.MaxTimeline:]
	}
	digest.Timeline = timeline

	counts, err := s.issueCounts(ctx, rng)
	if err != nil {
		return nil, err
	}
	if len(counts) > 0 {
		digest.IssueCounts = counts
	}

	if caps.MaxSummaries > 0 {
		summaries, err := s.RecentSummaries(ctx, rng.To, caps.MaxSummaries)
		if err != nil {
			return nil, err
		}
		digest.Summaries = summaries
	}

	return digest, nil
}

// capForeshadowing truncates to max items, dropping minor items before
// major ones and newer plants before older ones within a kind. Old plants
// stay: they are the ones closest to overdue.
func capForeshadowing(items []model.ForeshadowingItem, max int) []model.ForeshadowingItem {
	if max <= 0 || len(items) <= max {
		return items
	}

	kept := make([]model.ForeshadowingItem, len(items))
	copy(kept, items)
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Kind != kept[j].Kind {
			return kept[i].Kind == model.ForeshadowMajor
		}
		return kept[i].PlantChapter < kept[j].PlantChapter
	})
	kept = kept[:max]

	// Restore the stable plant-chapter order for the survivors.
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].PlantChapter != kept[j].PlantChapter {
			return kept[i].PlantChapter < kept[j].PlantChapter
		}
		return kept[i].ID < kept[j].ID
	})
	return kept
}
