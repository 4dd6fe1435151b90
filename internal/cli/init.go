package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a novelkeeper project",
		Long:  "Write the default novelkeeper.yaml, create the database, and optionally seed the chapter roster from an outline file.",
		Run:   runInit,
	}

	cmd.Flags().StringP("outline", "o", "", "YAML outline file to seed the chapter roster")

	RootCmd.AddCommand(cmd)
}

// outline is the YAML shape accepted by init --outline.
type outline struct {
	Chapters []struct {
		Number      int      `yaml:"number"`
		Title       string   `yaml:"title"`
		Summary     string   `yaml:"summary,omitempty"`
		TargetWords int      `yaml:"target_words,omitempty"`
		POV         string   `yaml:"pov,omitempty"`
		Characters  []string `yaml:"characters,omitempty"`
		Plants      []string `yaml:"plants,omitempty"`
		Resolves    []string `yaml:"resolves,omitempty"`
	} `yaml:"chapters"`
}

func runInit(cmd *cobra.Command, args []string) {
	if err := config.WriteDefault(projectDir); err != nil {
		exitErr("init", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	outlinePath, _ := cmd.Flags().GetString("outline")
	seeded := 0
	if outlinePath != "" {
		b, err := os.ReadFile(outlinePath)
		if err != nil {
			exitErr("read outline", err)
		}
		var o outline
		if err := yaml.Unmarshal(b, &o); err != nil {
			exitErr("parse outline", err)
		}
		for _, c := range o.Chapters {
			err := s.UpsertChapter(cmd.Context(), model.Chapter{
				Number:      c.Number,
				Title:       c.Title,
				Summary:     c.Summary,
				TargetWords: c.TargetWords,
				POV:         c.POV,
				Characters:  c.Characters,
				Plants:      c.Plants,
				Resolves:    c.Resolves,
			})
			if err != nil {
				exitErr(fmt.Sprintf("seed chapter %d", c.Number), err)
			}
			seeded++
		}
	}

	fmt.Printf("initialized project in %s (%d chapters outlined)\n", projectDir, seeded)
}
