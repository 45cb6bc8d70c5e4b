package main

import (
	"fmt"
	"os"

	"github.com/MrSnakeDoc/tripsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintf(os.Stderr, "❌ tripsync: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
