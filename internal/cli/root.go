// Package cli implements the novelkeeper CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zoudejun0319/novelkeeper/internal/config"
	"github.com/zoudejun0319/novelkeeper/internal/errs"
	"github.com/zoudejun0319/novelkeeper/internal/memory"
)

// Process exit codes. Success with a degraded checkpoint and a parked
// chapter are distinct so batch callers can react without parsing output.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitDegraded    = 3
	ExitRevisionCap = 4
)

var projectDir string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "novelkeeper",
	Short: "Narrative consistency engine for incremental novel writing",
	Long:  "Tracks character state, foreshadowing, and consistency issues across a long-running novel project, and drives the draft-check-revise write loop.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "Project directory (holds novelkeeper.yaml and the database)")
}

func dbPath() string {
	return filepath.Join(projectDir, "novelkeeper.db")
}

func loadConfig() (config.Config, error) {
	return config.Load(projectDir)
}

func openStore() (*memory.SQLiteStore, error) {
	return memory.NewSQLiteStore(dbPath())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	if errs.IsCode(err, errs.CodeRevisionCapExceeded) {
		os.Exit(ExitRevisionCap)
	}
	os.Exit(ExitError)
}
