package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/check"
	"github.com/zoudejun0319/novelkeeper/internal/collab"
	"github.com/zoudejun0319/novelkeeper/internal/model"
	"github.com/zoudejun0319/novelkeeper/internal/schedule"
)

func init() {
	cmd := &cobra.Command{
		Use:   "review [file]",
		Short: "Check an existing draft without generating",
		Long:  "Run a consistency checkpoint over a draft supplied as a file or on stdin. Nothing is drafted or revised; findings are recorded and printed.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runReview,
	}

	cmd.Flags().IntP("chapter", "c", 0, "Chapter number the draft belongs to (required)")
	cmd.Flags().StringP("scope", "s", "per_chapter", "Scope: per_chapter, minor, major, volume_end")
	cmd.MarkFlagRequired("chapter")

	RootCmd.AddCommand(cmd)
}

func runReview(cmd *cobra.Command, args []string) {
	number, _ := cmd.Flags().GetInt("chapter")
	scopeStr, _ := cmd.Flags().GetString("scope")
	scope := model.Scope(scopeStr)
	if !scope.Valid() {
		exitErr("review", fmt.Errorf("unknown scope %q", scopeStr))
	}

	var draft []byte
	var err error
	if len(args) > 0 {
		draft, err = os.ReadFile(args[0])
	} else {
		draft, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read draft", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ch, err := s.Chapter(cmd.Context(), number)
	if err != nil {
		exitErr("load chapter", err)
	}

	var analyzer check.Analyzer
	if cfg.Collaborator.SemanticEnabled {
		client, err := collab.New(cfg.Collaborator)
		if err != nil {
			exitErr("init collaborator", err)
		}
		analyzer = client
	}

	rng := schedule.RangeFor(scope, number, cfg.Schedule.Volumes, schedule.FromConfig(cfg.Schedule))
	report, err := check.New(s, analyzer, cfg).Run(cmd.Context(), scope, rng, []check.ChapterText{
		{Chapter: *ch, Text: string(draft)},
	})
	if err != nil {
		exitErr("review", err)
	}

	for _, is := range report.Issues {
		if _, err := s.RecordIssue(cmd.Context(), is); err != nil {
			exitErr("record issue", err)
		}
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
	if report.Degraded {
		os.Exit(ExitDegraded)
	}
	if !report.Pass {
		os.Exit(ExitError)
	}
}
