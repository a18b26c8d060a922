package main

import (
	"fmt"
	"os"

	"github.com/roach88/pixbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pixbridge:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
