package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/memory"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the project memory as JSON",
		Long:  "Export the chapter roster, foreshadowing registry, story timeline, issue log, and summary index as one JSON document. Narrow the chapter window with --from/--to.",
		Run:   runExport,
	}

	cmd.Flags().Int("from", 1, "First chapter of the export window")
	cmd.Flags().Int("to", 0, "Last chapter of the export window (default: last outlined)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	chapters, err := s.Chapters(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	if to == 0 {
		for _, ch := range chapters {
			if ch.Number > to {
				to = ch.Number
			}
		}
	}
	rng := model.ChapterRange{From: from, To: to}

	var kept []model.Chapter
	for _, ch := range chapters {
		if rng.Contains(ch.Number) {
			kept = append(kept, ch)
		}
	}

	unresolved, err := s.UnresolvedForeshadowing(cmd.Context(), to)
	if err != nil {
		exitErr("export", err)
	}

	issues, err := s.ListIssues(cmd.Context(), memory.IssueQuery{Range: rng})
	if err != nil {
		exitErr("export", err)
	}

	timeline, err := s.Timeline(cmd.Context(), rng)
	if err != nil {
		exitErr("export", err)
	}

	summaries, err := s.RecentSummaries(cmd.Context(), to, to-from+1)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(map[string]any{
		"range":      rng,
		"chapters":   kept,
		"unresolved": unresolved,
		"timeline":   timeline,
		"issues":     issues,
		"summaries":  summaries,
	}, "", "  ")
	fmt.Println(string(b))
}
