// Package main is the entry point for the hlsinspect tool.
package main

import (
	"os"

	"github.com/mogiioin/hlsengine/cmd/hlsinspect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
