package main

import (
	"os"

	"github.com/weftlang/weft/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
