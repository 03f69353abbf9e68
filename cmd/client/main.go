package main

import (
	"os"

	"github.com/atinyakov/GophShop/internal/client/cli"
)

var (
	version   string
	buildDate string
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if buildDate != "" {
		cli.BuildDate = buildDate
	}

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
