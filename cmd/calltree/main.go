package main

import (
	"os"

	"calltree/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Run(os.Args[1:]))
}
