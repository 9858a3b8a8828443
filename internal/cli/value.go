package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tix-calc/internal/config"
	"github.com/codyseavey/tix-calc/internal/models"
	"github.com/codyseavey/tix-calc/internal/services"
)

// valueDecklist loads the config, builds the valuator and prices the
// decklist in path
func valueDecklist(ctx context.Context, streams IO, path, date string, lenient bool,
	loadConfig func() (*config.Config, error), factory ValuatorFactory) (models.ValuedDecklist, error) {

	raw, err := readInput(path, streams.In)
	if err != nil {
		return models.ValuedDecklist{}, err
	}

	asOf, err := services.ParseValuationDate(date, time.Now())
	if err != nil {
		return models.ValuedDecklist{}, err
	}

	deck, err := decodeDecklist(path, raw, lenient)
	if err != nil {
		return models.ValuedDecklist{}, err
	}

	cfg, err := loadConfig()
	if err != nil {
		return models.ValuedDecklist{}, err
	}
	valuator, closeFn, err := factory(ctx, cfg)
	if err != nil {
		return models.ValuedDecklist{}, err
	}
	defer func() { _ = closeFn() }()

	return valuator.Value(ctx, deck, asOf), nil
}

func newValueCommand(streams IO, loadConfig func() (*config.Config, error), factory ValuatorFactory) *cobra.Command {
	var (
		date       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "value FILE",
		Short: "Price a decklist",
		Long:  "Price a decklist (use - for stdin) as of a date (default now).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			valued, err := valueDecklist(cmd.Context(), streams, args[0], date, false, loadConfig, factory)
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := models.EncodeValuedDecklist(valued)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(streams.Out, string(data))
				return err
			}
			return writeValuation(streams.Out, valued)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "valuation date, YYYY-MM-DD (default now)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the valuation as JSON")
	return cmd
}

// writeValuation prints one aligned row per card and the board totals
func writeValuation(out io.Writer, valued models.ValuedDecklist) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	places := int32(models.PriceDisplayPlaces)

	writeBoard := func(title string, cards []models.PricedCard, total string) {
		fmt.Fprintf(tw, "%s\t\t\t\t\n", title)
		for _, c := range cards {
			unit, line := c.UnitPrice.StringFixed(places), c.LineTotal.StringFixed(places)
			if c.Unavailable {
				unit, line = "n/a", "n/a"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", c.Quantity, c.Name, unit, line)
		}
		fmt.Fprintf(tw, "\tTotal\t\t%s\t\n", total)
	}

	writeBoard("Main", valued.Main, valued.MainTotal.StringFixed(places))
	if len(valued.Sideboard) > 0 {
		writeBoard("Sideboard", valued.Sideboard, valued.SideboardTotal.StringFixed(places))
	}
	fmt.Fprintf(tw, "\tGrand total (%s)\t\t%s\t\n", valued.AsOf.Format("2006-01-02"), valued.GrandTotal.StringFixed(places))
	if valued.UnavailableCount > 0 {
		fmt.Fprintf(tw, "\t%d card(s) without a price\t\t\t\n", valued.UnavailableCount)
	}
	return tw.Flush()
}
