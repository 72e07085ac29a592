//go:build gendoc

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"
)

// Built only with -tags gendoc; a release process uses this to regenerate
// the man page and Markdown help committed alongside the binary.
func init() {
	if os.Getenv("GHCIWATCH_GENDOC") != "1" {
		return
	}
	if err := genDocs(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func genDocs() error {
	cmd := newRootCmd()
	cmd.DisableAutoGenTag = true

	outDir := os.Getenv("GHCIWATCH_GENDOC_DIR")
	if outDir == "" {
		outDir = "."
	}

	if err := doc.GenMarkdownTree(cmd, outDir); err != nil {
		return fmt.Errorf("gendoc: markdown: %w", err)
	}
	header := &doc.GenManHeader{Title: "GHCIWATCH", Section: "1"}
	if err := doc.GenManTree(cmd, header, outDir); err != nil {
		return fmt.Errorf("gendoc: man page: %w", err)
	}
	return nil
}
