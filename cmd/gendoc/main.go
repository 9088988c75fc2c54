package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra/doc"
	flag "github.com/spf13/pflag"

	"github.com/enex/errcapture/cmd/errcapture/command"
	"github.com/enex/errcapture/internal/version"
)

func main() {
	out := flag.String("out", ".", "output root")
	flag.Parse()

	if err := generate(*out); err != nil {
		slog.Error("error generating docs", "error", err)
		os.Exit(1)
	}
}

func generate(root string) error {
	rootCmd := command.Root()
	rootCmd.DisableAutoGenTag = true

	dirs := map[string]string{
		"docs":       filepath.Join(root, "docs"),
		"man":        filepath.Join(root, "etc", "man", "man1"),
		"completion": filepath.Join(root, "etc", "completion"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}

	if err := doc.GenMarkdownTree(rootCmd, dirs["docs"]); err != nil {
		return err
	}

	header := &doc.GenManHeader{
		Title:   "ERRCAPTURE",
		Section: "1",
		Source:  "errcapture " + version.String(),
		Manual:  "errcapture Manual",
	}
	if err := doc.GenManTree(rootCmd, header, dirs["man"]); err != nil {
		return err
	}

	if err := rootCmd.GenBashCompletionFile(filepath.Join(dirs["completion"], "errcapture.bash_completion.sh")); err != nil {
		return err
	}
	return rootCmd.GenZshCompletionFile(filepath.Join(dirs["completion"], "errcapture.zsh_completion"))
}
