package main

import (
	"os"

	"github.com/fahmaliyi/sealvault/cli"
)

func main() {
	os.Exit(cli.Execute())
}
