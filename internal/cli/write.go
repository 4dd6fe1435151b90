package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/check"
	"github.com/zoudejun0319/novelkeeper/internal/collab"
	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Draft the next chapter through the full check loop",
		Long:  "Draft a chapter with the collaborator, run its scheduled checkpoints, and revise until required checks pass or the revision cap parks it. Accepted drafts land under chapters/.",
		Run:   runWrite,
	}

	cmd.Flags().IntP("chapter", "c", 0, "Chapter to write (default: next unwritten)")
	cmd.Flags().IntP("batch", "b", 1, "Number of consecutive chapters to write")
	cmd.Flags().Bool("all", false, "Write until the roster is exhausted or a chapter parks")

	RootCmd.AddCommand(cmd)
}

func runWrite(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	client, err := collab.New(cfg.Collaborator)
	if err != nil {
		exitErr("init collaborator", err)
	}

	var analyzer check.Analyzer
	if cfg.Collaborator.SemanticEnabled {
		analyzer = client
	}
	p := pipeline.New(s, client, check.New(s, analyzer, cfg), cfg)

	chapter, _ := cmd.Flags().GetInt("chapter")
	batch, _ := cmd.Flags().GetInt("batch")
	all, _ := cmd.Flags().GetBool("all")
	if all {
		batch = int(^uint(0) >> 1)
	}

	degraded := false
	for i := 0; i < batch; i++ {
		number := chapter
		if number == 0 || i > 0 {
			next, err := s.NextChapter(cmd.Context())
			if errs.IsCode(err, errs.CodeNotFound) {
				if i == 0 {
					exitErr("write", err)
				}
				break
			}
			if err != nil {
				exitErr("next chapter", err)
			}
			number = next.Number
		}

		res, err := p.Advance(cmd.Context(), number)
		if res != nil && res.Accepted {
			if werr := saveDraft(number, res.Draft.Text); werr != nil {
				exitErr("save draft", werr)
			}
		}
		if res != nil {
			printResult(res)
			degraded = degraded || res.Degraded
		}
		if err != nil {
			exitErr(fmt.Sprintf("write chapter %d", number), err)
		}
	}

	if degraded {
		os.Exit(ExitDegraded)
	}
}

func saveDraft(number int, text string) error {
	dir := filepath.Join(projectDir, "chapters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fmt.Sprintf("chapter_%04d.md", number)), []byte(text), 0o644)
}

func printResult(res *pipeline.Result) {
	out := map[string]any{
		"run_id":    res.RunID,
		"chapter":   res.Chapter,
		"accepted":  res.Accepted,
		"revisions": res.Revisions,
		"degraded":  res.Degraded,
	}
	issues := 0
	for _, r := range res.Reports {
		issues += len(r.Issues)
	}
	out["issues"] = issues
	b, _ := json.Marshal(out)
	fmt.Println(string(b))
}
