package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Hyphonical/Scout/internal/retrieval"
	"github.com/Hyphonical/Scout/internal/tui"
)

func newBrowseCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactively browse and search indexed media in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			enc := newEncoder(cfg)
			defer enc.Close()
			engine := retrieval.New(enc)

			p := tea.NewProgram(tui.New(engine, dir), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("scout: browse: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory to browse")
	return cmd
}
