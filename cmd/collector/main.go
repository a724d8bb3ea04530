// Package main provides the arxiv-collector command line: backfill and
// update the local store, then browse, search and summarize it.
package main

import (
	"os"
)

func main() {
	if err := execute(os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
