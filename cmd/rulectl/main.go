package main

import (
	"fmt"
	"os"

	"idv/internal/rulecli"
)

func main() {
	if err := rulecli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rulectl:", err)
		os.Exit(1)
	}
}
