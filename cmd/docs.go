package cmd

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// https://pmarsceill.github.io/just-the-docs/docs/navigation-structure/
const rootPage = `---
layout: default
title: %s
nav_order: %d
has_children: true
permalink: /
---
`

// command without children
const childPage = `---
layout: default
title: %s
parent: %s
nav_order: %d
---
`

// page is the position of a command's doc page in the navigation
type page struct {
	root     bool
	title    string
	navOrder int
	parent   string
}

// map from the base Markdown file name to its page
var pages = map[string]page{
	"anvio":          {true, "anvio", 0, ""},
	"anvio_profile":  {false, "profile", 0, "anvio"},
	"anvio_annotate": {false, "annotate", 1, "anvio"},
	"anvio_index":    {false, "index", 2, "anvio"},
	"anvio_docs":     {false, "docs", 3, "anvio"},
}

// docsCmd writes the Markdown documentation of every command
var docsCmd = &cobra.Command{
	Use:    "docs",
	Short:  "Write Markdown documentation for every command",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal(err)
		}
		if err := doc.GenMarkdownTreeCustom(RootCmd, dir, filePrepender, linkHandler); err != nil {
			logger.Fatal(err)
		}
	},
}

func init() {
	docsCmd.Flags().StringP("dir", "d", "./docs", "output directory")
	RootCmd.AddCommand(docsCmd)
}

// filePrepender adds YAML headings that are required by the just-the-docs theme
// https://github.com/spf13/cobra/blob/master/doc/md_docs.md
func filePrepender(filename string) string {
	name := filepath.Base(filename)
	p, ok := pages[strings.TrimSuffix(name, path.Ext(name))]
	if !ok {
		return ""
	}

	if p.root {
		return fmt.Sprintf(rootPage, p.title, p.navOrder)
	}
	return fmt.Sprintf(childPage, p.title, p.parent, p.navOrder)
}

// linkHandler returns the URL to a documentation page
func linkHandler(filename string) string {
	name := filepath.Base(filename)
	base := strings.TrimSuffix(name, path.Ext(name))

	if base == "anvio" {
		return "/"
	}
	return base
}
