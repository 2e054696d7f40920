package commands

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	intconfig "github.com/leapstack-labs/mktwh/internal/config"
	"github.com/leapstack-labs/mktwh/internal/reference"
)

// ReferenceFetchOptions holds options for `reference fetch`.
type ReferenceFetchOptions struct {
	Output string
}

// NewReferenceCommand creates the reference command group.
func NewReferenceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage reference data",
	}
	cmd.AddCommand(newReferenceFetchCommand())
	return cmd
}

func newReferenceFetchCommand() *cobra.Command {
	opts := &ReferenceFetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the airport lookup",
		Long: `Download the OurAirports dataset and write the airport lookup used to
place out-of-home spend in a state.

Only the configured IATA codes are kept (reference.codes). Server errors and
network failures are retried (reference.retries).`,
		Example: `  mktwh reference fetch
  mktwh reference fetch --output-file /tmp/airport_lookup.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReferenceFetch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Output, "output-file", "", "Lookup file to write (default: <reference_dir>/airport_lookup.csv)")

	return cmd
}

func runReferenceFetch(cmd *cobra.Command, opts *ReferenceFetchOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg

	path := opts.Output
	if path == "" {
		path = filepath.Join(cfg.ReferenceDir, intconfig.AirportLookupFile)
	}

	fetcher := reference.NewFetcher(reference.FetchConfig{
		URL:     cfg.Reference.URL,
		Retries: cfg.Reference.Retries,
		Timeout: cfg.Reference.Timeout,
		Codes:   cfg.Reference.Codes,
	}, cmdCtx.Logger)
	airports, err := fetcher.FetchToFile(cmd.Context(), path)
	if err != nil {
		return err
	}

	var unmatched []string
	for _, code := range cfg.Reference.Codes {
		if !slices.ContainsFunc(airports, func(a reference.Airport) bool { return a.IATA == code }) {
			unmatched = append(unmatched, code)
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		out := make([]output.AirportOutput, 0, len(airports))
		for _, a := range airports {
			out = append(out, output.AirportOutput(a))
		}
		return r.JSON(out)
	}

	r.Header(1, "Airport lookup")
	rows := make([][]string, 0, len(airports))
	for _, a := range airports {
		rows = append(rows, []string{a.IATA, a.Name, a.Municipality, a.State, a.Country})
	}
	r.Table([]string{"iata_code", "name", "municipality", "state", "iso_country"}, rows)
	r.Println("")
	for _, code := range unmatched {
		r.Warning(fmt.Sprintf("%s not found in the dataset", code))
	}
	r.Success(fmt.Sprintf("Wrote %d airports to %s", len(airports), path))
	return nil
}
