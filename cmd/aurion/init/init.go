// Package initcmder provides the init command for initializing a local .aurion
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/pkg/cliui"
	"github.com/papercomputeco/aurion/pkg/config"
)

const (
	dirName = ".aurion"
)

const initLongDesc string = `Initialize a new .aurion/ directory in the current working directory.

Creates a local .aurion/ directory that takes precedence over the default
~/.aurion/ directory for configuration and the SQLite fact database.

This is useful for keeping a separate fact memory per project.

Use --preset to also write a config.toml for an embedding provider
(ollama, openai).

Examples:
  aurion init
  aurion init --preset openai`

const initShortDesc string = "Initialize a local .aurion/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Write a config.toml preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(cmd *cobra.Command, preset string) error {
	out := cmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", dir)
	case errors.Is(err, os.ErrNotExist):
		err := cliui.Step(out, "Creating .aurion directory", func() error {
			return os.MkdirAll(dir, 0o755)
		})
		if err != nil {
			return fmt.Errorf("creating .aurion directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .aurion directory: %s\n", dir)
	default:
		return fmt.Errorf("checking .aurion directory: %w", err)
	}

	if preset == "" {
		return nil
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	msg := fmt.Sprintf("Writing %s preset to %s",
		cliui.KeyStyle.Render(strings.ToLower(preset)),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return cliui.Step(out, msg, func() error {
		return cfger.SaveConfig(cfg)
	})
}
