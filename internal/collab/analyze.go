package collab

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoudejun0319/novelkeeper/internal/check"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

const analyzeSystem = `You are a continuity editor for a long web novel.
Read the story digest and the chapter drafts and report narrative
consistency problems: plot holes, out-of-character behavior, broken world
rules, viewpoint slips, dangling setups. Reply with a JSON array, possibly
empty:
[{"chapter": 0, "category": "...", "severity": "critical|warning|suggestion",
  "description": "...", "span": "offending passage", "suggestion": "..."}]
Use only the category ids you are given. Do not report style preferences.`

// Analyze implements the checker's semantic family over a chat model.
func (c *Client) Analyze(ctx context.Context, digest *model.Digest, chapters []check.ChapterText, taxonomy []model.Category) ([]model.ConsistencyIssue, error) {
	var b strings.Builder
	b.WriteString("Categories: ")
	for i, cat := range taxonomy {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(cat))
	}
	b.WriteString("\n")
	writeDigest(&b, digest)
	for _, ch := range chapters {
		fmt.Fprintf(&b, "\n--- Chapter %d: %s ---\n%s\n", ch.Chapter.Number, ch.Chapter.Title, ch.Text)
	}

	reply, err := c.complete(ctx, analyzeSystem, b.String())
	if err != nil {
		return nil, err
	}
	var issues []model.ConsistencyIssue
	if err := decodeJSON(reply, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
