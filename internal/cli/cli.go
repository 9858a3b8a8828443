// Package cli implements the tixcalc command line: parse, value and preview
// decklists without running the HTTP server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tix-calc/internal/app"
	"github.com/codyseavey/tix-calc/internal/config"
	"github.com/codyseavey/tix-calc/internal/models"
	"github.com/codyseavey/tix-calc/internal/services"
)

// Version is set at build time
var Version = "dev"

// Valuator prices a decklist
type Valuator interface {
	Value(ctx context.Context, decklist models.Decklist, asOf time.Time) models.ValuedDecklist
}

// ValuatorFactory builds the valuator from config. The returned close
// function releases its resources.
type ValuatorFactory func(ctx context.Context, cfg *config.Config) (Valuator, func() error, error)

// IO bundles the streams commands read from and write to
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Execute runs the CLI and returns the process exit code
func Execute(args []string, streams IO) int {
	return ExecuteWith(args, streams, buildValuator)
}

// ExecuteWith runs the CLI with a custom valuator factory
func ExecuteWith(args []string, streams IO, factory ValuatorFactory) int {
	rootCmd := NewRootCommand(streams, factory)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(streams.Err, "Error:", err)
		return 1
	}
	return 0
}

// NewRootCommand creates the root command with injectable IO
func NewRootCommand(streams IO, factory ValuatorFactory) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "tixcalc",
		Short:         "Price MTGO decklists in tix",
		Long:          "tixcalc parses MTGO decklists (text, CSV or .dek) and prices them from goatbots price history.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	cmd.AddCommand(
		newParseCommand(streams),
		newValueCommand(streams, loadConfig, factory),
		newPreviewCommand(streams, loadConfig, factory),
	)
	return cmd
}

func buildValuator(ctx context.Context, cfg *config.Config) (Valuator, func() error, error) {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Valuator, a.Close, nil
}

// readInput reads a decklist file, or stdin when path is "-"
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		if stdin == nil {
			return "", fmt.Errorf("no stdin available")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read decklist: %w", err)
	}
	return string(data), nil
}

// decodeDecklist parses raw input. A path ending in .json holds a decklist
// written by "parse --to json"; anything else goes through the decklist
// parser, falling back to an empty decklist when lenient.
func decodeDecklist(path, raw string, lenient bool) (models.Decklist, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		deck, err := models.DecodeDecklist([]byte(raw))
		if err != nil {
			return models.Decklist{}, fmt.Errorf("invalid JSON decklist: %w", err)
		}
		return deck, nil
	}
	if lenient {
		return services.ParseDecklistOrEmpty(raw), nil
	}
	return services.ParseDecklist(raw)
}
