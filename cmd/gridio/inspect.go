package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/gridio/pkg/json"
	"github.com/ajitpratap0/gridio/pkg/meta"
	"github.com/ajitpratap0/gridio/pkg/netio"
	"github.com/ajitpratap0/gridio/pkg/network"
)

// summary describes a network for the inspect command.
type summary struct {
	Name              string              `json:"name"`
	CRS               string              `json:"crs"`
	Snapshots         int                 `json:"snapshots"`
	SnapshotLevels    []string            `json:"snapshot_levels"`
	InvestmentPeriods []string            `json:"investment_periods,omitempty"`
	Components        map[string]int      `json:"components"`
	Varying           map[string][]string `json:"varying,omitempty"`
	Shapes            int                 `json:"shapes"`
	Meta              json.RawMessage     `json:"meta"`

	classes []string
}

func summarize(n *network.Network) (*summary, error) {
	m, err := meta.Encode(n.Meta)
	if err != nil {
		return nil, err
	}
	if m == "" {
		m = "null"
	}
	s := &summary{
		Name:           n.Name,
		CRS:            n.CRS,
		Snapshots:      n.Snapshots.Len(),
		SnapshotLevels: n.Snapshots.Names(),
		Components:     make(map[string]int),
		Varying:        make(map[string][]string),
		Meta:           json.RawMessage(m),
		classes:        n.Classes(),
	}
	if n.InvestmentPeriods != nil {
		s.InvestmentPeriods = n.InvestmentPeriods.Levels[0].Strings()
	}
	if n.Shapes != nil {
		s.Shapes = n.Shapes.Len()
	}
	for _, class := range s.classes {
		c := n.Component(class)
		s.Components[class] = c.Len()
		var attrs []string
		for attr, t := range c.Dynamic {
			if !t.Empty() {
				attrs = append(attrs, attr)
			}
		}
		if len(attrs) > 0 {
			sort.Strings(attrs)
			s.Varying[class] = attrs
		}
	}
	return s, nil
}

func (s *summary) write(w io.Writer) {
	fmt.Fprintf(w, "Name:       %s\n", s.Name)
	fmt.Fprintf(w, "CRS:        %s\n", s.CRS)
	fmt.Fprintf(w, "Snapshots:  %d (%s)\n", s.Snapshots, strings.Join(s.SnapshotLevels, ", "))
	if len(s.InvestmentPeriods) > 0 {
		fmt.Fprintf(w, "Periods:    %s\n", strings.Join(s.InvestmentPeriods, ", "))
	}
	if s.Shapes > 0 {
		fmt.Fprintf(w, "Shapes:     %d\n", s.Shapes)
	}
	fmt.Fprintln(w, "Components:")
	for _, class := range s.classes {
		fmt.Fprintf(w, "  %-24s %d", class, s.Components[class])
		if attrs := s.Varying[class]; len(attrs) > 0 {
			fmt.Fprintf(w, "  varying: %s", strings.Join(attrs, ", "))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Meta:       %s\n", s.Meta)
}

func newInspectCommand(a *app) *cobra.Command {
	var asJSON bool
	var srcQuoteChar string
	cmd := &cobra.Command{
		Use:   "inspect SRC",
		Short: "Summarize a persisted network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.sourceOptions(srcQuoteChar)
			if err != nil {
				return err
			}
			n, err := netio.Open(cmd.Context(), args[0], opts)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[0], err)
			}
			s, err := summarize(n)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			s.write(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().StringVar(&srcQuoteChar, "src-quotechar", "", "Quote character of a CSV source")
	return cmd
}
