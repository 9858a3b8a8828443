package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codyseavey/tix-calc/internal/models"
	"github.com/codyseavey/tix-calc/internal/services"
)

func newParseCommand(streams IO) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a decklist and print it in another format",
		Long:  "Parse a decklist (use - for stdin, or a .json file from --to json) and print it as text, csv, xml or json.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(args[0], streams.In)
			if err != nil {
				return err
			}

			deck, err := decodeDecklist(args[0], raw, false)
			if err != nil {
				return err
			}

			switch to {
			case "json":
				data, err := models.EncodeDecklist(deck)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(streams.Out, string(data))
				return err
			case string(services.DecklistFormatText), string(services.DecklistFormatCSV), string(services.DecklistFormatXML):
				_, err = fmt.Fprintln(streams.Out, services.FormatDecklist(deck, services.DecklistFormat(to)))
				return err
			default:
				return fmt.Errorf("unknown output format %q (must be text, csv, xml or json)", to)
			}
		},
	}
	cmd.Flags().StringVar(&to, "to", "text", "output format: text, csv, xml or json")
	return cmd
}
