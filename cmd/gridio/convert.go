package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridio/pkg/config"
	"github.com/ajitpratap0/gridio/pkg/netio"
	"github.com/ajitpratap0/gridio/pkg/netio/format"
	"github.com/ajitpratap0/gridio/pkg/policy"
)

type convertFlags struct {
	to           string
	float32      bool
	compression  string
	quoteChar    string
	srcQuoteChar string
}

func newConvertCommand(a *app) *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert SRC DST",
		Short: "Convert a network from one format to another",
		Long: `Convert imports SRC, detecting its format, and exports it to DST.
The output format is taken from --to or from the extension of DST; a
path without extension is written as a CSV folder.

Example:
  gridio convert https://example.org/networks/scigrid.zip scigrid.nc --compression zstd:5:3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(cmd, args[0], args[1], f)
		},
	}
	cmd.Flags().StringVar(&f.to, "to", "", "Output format (csv, netcdf, hdf5, excel)")
	cmd.Flags().BoolVar(&f.float32, "float32", false, "Store float columns at single precision")
	cmd.Flags().StringVar(&f.compression, "compression", "", "Compression as none or algorithm[:level[:digits]]")
	cmd.Flags().StringVar(&f.quoteChar, "quotechar", "", "Quote character of the CSV output")
	cmd.Flags().StringVar(&f.srcQuoteChar, "src-quotechar", "", "Quote character of a CSV source")
	return cmd
}

// sourceOptions returns the import options of a CLI source.
func (a *app) sourceOptions(quoteChar string) (format.Options, error) {
	opts, err := a.cfg.Options(format.CSV)
	if err != nil {
		return opts, err
	}
	if quoteChar != "" {
		q, err := config.FormatConfig{QuoteChar: quoteChar}.Quote()
		if err != nil {
			return opts, err
		}
		opts.QuoteChar = q
	}
	opts.Logger = a.log
	return opts, nil
}

func (a *app) convert(cmd *cobra.Command, src, dst string, f convertFlags) error {
	ctx := cmd.Context()
	out, err := outputFormat(dst, f.to)
	if err != nil {
		return err
	}

	section := a.cfg.Section(out)
	if cmd.Flags().Changed("float32") {
		section.Float32 = f.float32
	}
	if cmd.Flags().Changed("compression") {
		section.Compression = f.compression
	}
	if cmd.Flags().Changed("quotechar") {
		section.QuoteChar = f.quoteChar
	}
	a.cfg.SetSection(out, section)
	exportOpts, err := a.cfg.Options(out)
	if err != nil {
		return err
	}
	exportOpts.Logger = a.log
	exportOpts.Report = func(r policy.Report) {
		if r.Lossy {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: %d float columns stored with reduced precision (float32=%t, compression=%s)\n",
				r.Columns, r.Float32, r.Policy().Compression)
		}
	}

	importOpts, err := a.sourceOptions(f.srcQuoteChar)
	if err != nil {
		return err
	}

	n, err := netio.Open(ctx, src, importOpts)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", src, err)
	}
	if err := netio.Export(ctx, n, dst, string(out), exportOpts); err != nil {
		return fmt.Errorf("failed to export %s: %w", dst, err)
	}
	a.log.Info("converted", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", out))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", dst, out)
	return nil
}

func outputFormat(dst, to string) (format.Format, error) {
	if to != "" {
		return format.Parse(to)
	}
	f, ok := format.FromExtension(dst)
	if !ok {
		return "", fmt.Errorf("cannot tell the output format of %s, use --to", dst)
	}
	return f, nil
}
