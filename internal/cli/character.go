package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Inspect and update character state",
	}

	set := &cobra.Command{
		Use:   "set [char_id] [key=value ...]",
		Short: "Record character state updates",
		Long:  "Append field-level updates to a character's ledger. Chapters must be non-decreasing per character.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runCharacterSet,
	}
	set.Flags().IntP("chapter", "c", 0, "Chapter the update belongs to (required)")
	set.MarkFlagRequired("chapter")

	show := &cobra.Command{
		Use:   "show [char_id]",
		Short: "Show a character's folded state",
		Args:  cobra.ExactArgs(1),
		Run:   runCharacterShow,
	}
	show.Flags().IntP("chapter", "c", 0, "State as of this chapter (default: latest)")

	cmd.AddCommand(set, show)
	RootCmd.AddCommand(cmd)
}

func runCharacterSet(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")

	update := model.CharacterState{}
	for _, pair := range args[1:] {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			exitErr("character set", fmt.Errorf("updates must be key=value, got %q", pair))
		}
		update[k] = v
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	event, err := s.RecordCharacterState(cmd.Context(), args[0], chapter, update)
	if err != nil {
		exitErr("character set", err)
	}

	b, _ := json.Marshal(event)
	fmt.Println(string(b))
}

func runCharacterShow(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	if chapter == 0 {
		chapter = int(^uint(0) >> 1)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	state, err := s.CharacterState(cmd.Context(), args[0], chapter)
	if err != nil {
		exitErr("character show", err)
	}

	b, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(b))
}
