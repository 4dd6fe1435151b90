package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/errs"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show project progress and store statistics",
		Run:   runStatus,
	}

	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), dbPath())
	if err != nil {
		exitErr("stats", err)
	}

	out := map[string]any{"stats": stats}

	next, err := s.NextChapter(cmd.Context())
	switch {
	case err == nil:
		out["next_chapter"] = next.Number
		out["next_title"] = next.Title
	case errs.IsCode(err, errs.CodeNotFound):
		out["next_chapter"] = nil
	default:
		exitErr("next chapter", err)
	}

	if stats.PassedChapters > 0 {
		overdue, err := s.OverdueForeshadowing(cmd.Context(), stats.PassedChapters, cfg.Check.OverdueThreshold)
		if err != nil {
			exitErr("overdue foreshadowing", err)
		}
		out["overdue_foreshadowing"] = len(overdue)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
