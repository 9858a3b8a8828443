package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tix-calc/internal/config"
	"github.com/codyseavey/tix-calc/internal/services"
)

func newPreviewCommand(streams IO, loadConfig func() (*config.Config, error), factory ValuatorFactory) *cobra.Command {
	var name, date string

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Render a decklist as an HTML page",
		Long:  "Price a decklist (use - for stdin) and print an HTML page with card images and prices.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valued, err := valueDecklist(cmd.Context(), streams, args[0], date, true, loadConfig, factory)
			if err != nil {
				return err
			}

			page, err := services.RenderPreview(valued, name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(streams.Out, page)
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", services.DefaultPreviewName, "deck name shown in the page title")
	cmd.Flags().StringVar(&date, "date", "", "valuation date, YYYY-MM-DD (default now)")
	return cmd
}
