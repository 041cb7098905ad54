// Command journal is the trading journal CLI and HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"trade-journal/internal/cli"
	"trade-journal/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	cmd := cli.NewRootCmd(logger)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
