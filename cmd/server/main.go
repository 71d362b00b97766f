package main

import (
	"context"
	"os"

	"github.com/rongwang/checkin-server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
