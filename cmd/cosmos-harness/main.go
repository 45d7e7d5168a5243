package main

import (
	"os"

	"github.com/cameronspears/cosmos/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
