package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Hyphonical/Scout/internal/sidecar"
)

func newCleanCmd() *cobra.Command {
	var (
		dir       string
		recursive bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove all sidecar files under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := sidecar.Enumerate(dir, recursive)
			if err != nil {
				return fmt.Errorf("scout: clean: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No sidecars found — nothing to clean.")
				return nil
			}

			if !yes {
				fmt.Printf("Remove %d sidecar file(s) under %s? [y/N] ", len(entries), dir)
				reader := bufio.NewReader(os.Stdin)
				ans, _ := reader.ReadString('\n')
				if ans != "y\n" && ans != "Y\n" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			removed := 0
			for _, e := range entries {
				if err := os.Remove(e.SidecarPath); err != nil {
					fmt.Fprintf(os.Stderr, "scout: remove %s: %v\n", e.SidecarPath, err)
					continue
				}
				removed++
			}
			removeEmptyScoutDirs(dir, recursive)
			fmt.Printf("Removed %d sidecar file(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to clean")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip confirmation prompt")

	return cmd
}

// removeEmptyScoutDirs removes any .scout directory that is empty after
// clean. It deletes no files itself; a .scout directory that still holds
// any entry is left in place.
func removeEmptyScoutDirs(root string, recursive bool) {
	var walk func(dir string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			full := filepath.Join(dir, e.Name())
			if !e.IsDir() {
				continue
			}
			if e.Name() == sidecar.DirName {
				remaining, err := os.ReadDir(full)
				if err == nil && len(remaining) == 0 {
					os.Remove(full)
				}
				continue
			}
			if recursive {
				walk(full)
			}
		}
	}
	walk(root)
}
