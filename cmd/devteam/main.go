package main

import (
	"os"

	"github.com/sweetpotato0/ai-devteam/cmd/root"
)

func main() {
	if err := root.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
