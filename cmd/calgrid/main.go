package main

import (
	"os"

	"calgrid/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
