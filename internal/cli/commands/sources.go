package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/mktwh/internal/cli/output"
	"github.com/leapstack-labs/mktwh/internal/source"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// NewSourcesCommand creates the sources command.
func NewSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the raw extracts the build reads",
		Long: `List every stream's file pattern and registered extracts, marking which are
present in the data directory. Files that match a stream pattern but are not
registered are listed too; they are read with no header fixes.`,
		Args: cobra.NoArgs,
		RunE: runSources,
	}
}

func runSources(cmd *cobra.Command, _ []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	reg := source.Default()

	var all []output.SourceOutput
	for _, s := range core.Streams {
		found, err := reg.Discover(cmdCtx.Cfg.DataDir, s)
		if err != nil {
			return err
		}
		present := map[string]bool{}
		for _, f := range found {
			present[f.Descriptor.ID] = true
		}
		for _, d := range reg.Sources(s) {
			all = append(all, sourceOutput(d, present[d.ID]))
		}
		for _, f := range found {
			if !f.Descriptor.Registered {
				all = append(all, sourceOutput(f.Descriptor, true))
			}
		}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(all)
	}

	r.Header(1, "Sources")
	r.Muted("Data directory: " + cmdCtx.Cfg.DataDir)
	r.Println("")

	var missing int
	for _, s := range core.Streams {
		r.Header(2, fmt.Sprintf("%s (%s)", output.Title(string(s)), reg.Glob(s)))
		for _, so := range all {
			if so.Stream != string(s) {
				continue
			}
			status, detail := "success", strings.Join(slices.Concat(so.Ops, so.Exclusions), "; ")
			switch {
			case !so.Present:
				status, detail = "failed", "missing"
				missing++
			case !so.Registered:
				status, detail = "pending", "unregistered"
			}
			r.StatusLine(so.File, status, detail)
		}
	}

	r.Println("")
	if missing > 0 {
		r.Warning(fmt.Sprintf("%d registered extracts are missing", missing))
		return nil
	}
	r.Success("All registered extracts are present")
	return nil
}

func sourceOutput(d source.Descriptor, present bool) output.SourceOutput {
	so := output.SourceOutput{
		ID:          d.ID,
		Stream:      string(d.Stream),
		File:        d.File,
		Description: d.Description,
		Registered:  d.Registered,
		Present:     present,
	}
	for _, op := range d.Ops {
		so.Ops = append(so.Ops, op.String())
	}
	for _, ex := range d.Exclude {
		so.Exclusions = append(so.Exclusions, ex.String())
	}
	return so
}
