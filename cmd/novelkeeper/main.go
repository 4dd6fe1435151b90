package main

import (
	"os"

	"github.com/zoudejun0319/novelkeeper/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
