// Package schedule decides which verification scopes run after a chapter
// completes. The policy is a pure function of the chapter number, the
// volume boundaries, and the configured intervals: re-running it for the
// same inputs always yields the same scope set.
package schedule

import (
	"sort"

	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

// Policy holds the checkpoint intervals.
type Policy struct {
	MinorInterval int
	MajorInterval int
}

// DefaultPolicy returns the standard intervals: minor every 10 chapters,
// major every 50.
func DefaultPolicy() Policy {
	return Policy{MinorInterval: 10, MajorInterval: 50}
}

// FromConfig builds a policy from the schedule section of the project
// config.
func FromConfig(c config.Schedule) Policy {
	p := DefaultPolicy()
	if c.MinorInterval > 0 {
		p.MinorInterval = c.MinorInterval
	}
	if c.MajorInterval > 0 {
		p.MajorInterval = c.MajorInterval
	}
	return p
}

// ScopesFor returns the scopes to run after the given chapter completes,
// ordered by ascending coverage width. per_chapter always runs; minor and
// major run on their intervals; volume_end runs when the chapter closes a
// volume.
func ScopesFor(chapter int, volumes []config.Volume, p Policy) []model.Scope {
	if chapter <= 0 {
		return nil
	}

	scopes := []model.Scope{model.ScopePerChapter}
	if p.MinorInterval > 0 && chapter%p.MinorInterval == 0 {
		scopes = append(scopes, model.ScopeMinor)
	}
	if p.MajorInterval > 0 && chapter%p.MajorInterval == 0 {
		scopes = append(scopes, model.ScopeMajor)
	}
	for _, v := range volumes {
		if chapter == v.LastChapter {
			scopes = append(scopes, model.ScopeVolumeEnd)
			break
		}
	}

	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Width() < scopes[j].Width() })
	return scopes
}

// RangeFor returns the chapter range a scope covers when triggered at the
// given chapter.
func RangeFor(scope model.Scope, chapter int, volumes []config.Volume, p Policy) model.ChapterRange {
	switch scope {
	case model.ScopePerChapter:
		return model.ChapterRange{From: chapter, To: chapter}
	case model.ScopeMinor:
		return lookback(chapter, p.MinorInterval)
	case model.ScopeMajor:
		return lookback(chapter, p.MajorInterval)
	case model.ScopeVolumeEnd:
		for _, v := range volumes {
			if chapter == v.LastChapter {
				return model.ChapterRange{From: v.FirstChapter, To: v.LastChapter}
			}
		}
	}
	return model.ChapterRange{From: chapter, To: chapter}
}

func lookback(chapter, interval int) model.ChapterRange {
	from := chapter - interval + 1
	if from < 1 {
		from = 1
	}
	return model.ChapterRange{From: from, To: chapter}
}
