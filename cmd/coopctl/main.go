package main

import (
	"os"

	"github.com/sangkips/coopmart-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
