package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/memory"
	"github.com/zoudejun0319/novelkeeper/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "foreshadow",
		Short: "Manage foreshadowing threads",
	}

	plant := &cobra.Command{
		Use:   "plant [id] [description]",
		Short: "Plant a foreshadowing thread",
		Args:  cobra.MinimumNArgs(2),
		Run:   runForeshadowPlant,
	}
	plant.Flags().IntP("chapter", "c", 0, "Chapter the thread is planted in (required)")
	plant.Flags().String("kind", "minor", "Kind: major or minor")
	plant.Flags().Int("target", 0, "Chapter the payoff is due by")
	plant.Flags().String("notes", "", "Free-form notes")
	plant.MarkFlagRequired("chapter")

	resolve := &cobra.Command{
		Use:   "resolve [id] [chapter]",
		Short: "Mark a planted thread resolved",
		Args:  cobra.ExactArgs(2),
		Run:   runForeshadowResolve,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List unresolved threads",
		Run:   runForeshadowList,
	}
	list.Flags().IntP("chapter", "c", 0, "Current chapter for the overdue view (default: last written)")
	list.Flags().Bool("overdue", false, "Show only overdue threads")

	cmd.AddCommand(plant, resolve, list)
	RootCmd.AddCommand(cmd)
}

func runForeshadowPlant(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	kind, _ := cmd.Flags().GetString("kind")
	target, _ := cmd.Flags().GetInt("target")
	notes, _ := cmd.Flags().GetString("notes")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	item, err := s.PlantForeshadowing(cmd.Context(), memory.PlantParams{
		ID:            args[0],
		Chapter:       chapter,
		Description:   args[1],
		Kind:          model.ForeshadowKind(kind),
		TargetChapter: target,
		Notes:         notes,
	})
	if err != nil {
		exitErr("plant", err)
	}

	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}

func runForeshadowResolve(cmd *cobra.Command, args []string) {
	chapter, err := strconv.Atoi(args[1])
	if err != nil {
		exitErr("resolve", fmt.Errorf("chapter must be a number: %w", err))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	item, err := s.ResolveForeshadowing(cmd.Context(), chapter, args[0])
	if err != nil {
		exitErr("resolve", err)
	}

	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}

func runForeshadowList(cmd *cobra.Command, args []string) {
	chapter, _ := cmd.Flags().GetInt("chapter")
	overdueOnly, _ := cmd.Flags().GetBool("overdue")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if chapter == 0 {
		stats, err := s.Stats(cmd.Context(), dbPath())
		if err != nil {
			exitErr("stats", err)
		}
		chapter = stats.PassedChapters
	}

	var items []model.ForeshadowingItem
	if overdueOnly {
		items, err = s.OverdueForeshadowing(cmd.Context(), chapter, cfg.Check.OverdueThreshold)
	} else {
		items, err = s.UnresolvedForeshadowing(cmd.Context(), chapter)
	}
	if err != nil {
		exitErr("list", err)
	}

	for i := range items {
		items[i].Status = items[i].EffectiveStatus(chapter, cfg.Check.OverdueThreshold)
	}

	if !overdueOnly {
		pending, err := s.PendingForeshadowing(cmd.Context())
		if err != nil {
			exitErr("list", err)
		}
		items = append(items, pending...)
	}
	b, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(b))
}
