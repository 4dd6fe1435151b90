package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zoudejun0319/novelkeeper/internal/model"
	"github.com/zoudejun0319/novelkeeper/internal/revise"
)

const draftSystem = `You are the drafting collaborator for a long web novel.
Write the requested chapter in the outlined viewpoint, opening with a
[POV: name] line. Reply with a single JSON object:
{"text": "...", "summary": "...",
 "state_updates": {"char_id": {"attribute": "value"}},
 "plants": [{"id": "...", "description": "...", "kind": "major|minor", "target_chapter": 0}],
 "resolves": ["thread_id"],
 "timeline": [{"id": "...", "story_time": "...", "description": "...", "location": "...", "characters": ["char_id"]}]}
Declare every character state the prose changes, every foreshadowing
thread it plants or resolves, and every dated story event, with a stable
id per event. Stay consistent with the story digest.`

const reviseSystem = `You are revising a chapter of a long web novel. Apply
every directive, change nothing else, and keep the [POV: name] opening.
Reply with the same JSON object shape you used for the draft.`

// Draft asks the collaborator to write one chapter from its roster entry
// and the story digest.
func (c *Client) Draft(ctx context.Context, ch model.Chapter, digest *model.Digest) (*model.Draft, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter %d: %s\n", ch.Number, ch.Title)
	if ch.POV != "" {
		fmt.Fprintf(&b, "Viewpoint: %s\n", ch.POV)
	}
	fmt.Fprintf(&b, "Target length: %d words\n", ch.TargetWords)
	if ch.Summary != "" {
		fmt.Fprintf(&b, "Outline: %s\n", ch.Summary)
	}
	if len(ch.Plants) > 0 {
		fmt.Fprintf(&b, "Plant threads: %s\n", strings.Join(ch.Plants, ", "))
	}
	if len(ch.Resolves) > 0 {
		fmt.Fprintf(&b, "Resolve threads: %s\n", strings.Join(ch.Resolves, ", "))
	}
	writeDigest(&b, digest)

	reply, err := c.complete(ctx, draftSystem, b.String())
	if err != nil {
		return nil, err
	}
	return parseDraft(reply, ch.Number)
}

// Revise asks the collaborator to rework a draft against revision
// directives.
func (c *Client) Revise(ctx context.Context, draft *model.Draft, directives []revise.Directive) (*model.Draft, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Chapter %d current text:\n%s\n\nDirectives:\n", draft.Chapter, draft.Text)
	for i, d := range directives {
		fmt.Fprintf(&b, "%d. [%s/%s] %s", i+1, d.Severity, d.Category, d.Diagnosis)
		if d.Span != "" {
			fmt.Fprintf(&b, " (passage: %q)", d.Span)
		}
		fmt.Fprintf(&b, " -> %s\n", d.Rewrite)
	}

	reply, err := c.complete(ctx, reviseSystem, b.String())
	if err != nil {
		return nil, err
	}
	return parseDraft(reply, draft.Chapter)
}

func parseDraft(reply string, chapter int) (*model.Draft, error) {
	var d model.Draft
	if err := decodeJSON(reply, &d); err != nil {
		return nil, err
	}
	d.Chapter = chapter
	return &d, nil
}

func writeDigest(b *strings.Builder, digest *model.Digest) {
	if digest == nil {
		return
	}
	b.WriteString("\nStory digest:\n")
	enc, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return
	}
	b.Write(enc)
	b.WriteString("\n")
}
