package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-rasterstream/raster"
)

func newStatsCmd(a *app) *cobra.Command {
	var input, report string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute per-band mean, standard deviation, covariance and correlation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := raster.ComputeStatistics(cmd.Context(), input, a.opts...)
			if err != nil {
				return err
			}
			a.bar.Close()
			if err := printStatistics(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if report == "" {
				return nil
			}
			if err := writeReport(report, stats); err != nil {
				return err
			}
			a.log.WithField("report", report).Info("statistics written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input raster")
	cmd.Flags().StringVar(&report, "report", "", "write the statistics as YAML to this file")
	cmd.MarkFlagRequired("input")
	return cmd
}

func newRXCmd(a *app) *cobra.Command {
	var (
		input, output, kind string
		pinv                bool
	)
	cmd := &cobra.Command{
		Use:   "rx",
		Short: "Score every pixel with the RX anomaly detector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := raster.ParseRXKind(kind)
			if err != nil {
				return err
			}
			rep, err := raster.DetectAnomalies(cmd.Context(), input, output,
				a.with(raster.WithRXKind(k), raster.WithPseudoInverse(pinv))...)
			if err != nil {
				return err
			}
			a.bar.Close()
			a.log.WithFields(logrus.Fields{
				"output":   rep.Output,
				"kind":     rep.Kind,
				"min":      rep.MinScore,
				"max":      rep.MaxScore,
				"mean":     rep.MeanScore,
				"blocks":   rep.Blocks,
				"duration": rep.Duration,
			}).Info("anomaly scores written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input raster")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output score raster")
	cmd.Flags().StringVar(&kind, "kind", raster.RXD.String(), "detector: rxd, utd or rxd-utd")
	cmd.Flags().BoolVar(&pinv, "pinv", false, "use the pseudo-inverse of a singular covariance")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func newDestripeCmd(a *app) *cobra.Command {
	var (
		input, output, method string
		n                     int
	)
	cmd := &cobra.Command{
		Use:   "destripe",
		Short: "Remove column striping by matching column statistics to a smooth target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := raster.ParseStripeMethod(method)
			if err != nil {
				return err
			}
			opts := a.with(raster.WithStripeMethod(m))
			if cmd.Flags().Changed("n") {
				opts = append(opts, raster.WithStripeWindow(n))
			}
			if err := raster.RemoveStripes(cmd.Context(), input, output, opts...); err != nil {
				return err
			}
			a.bar.Close()
			a.log.WithField("output", output).Info("destriped raster written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "input raster")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output raster")
	cmd.Flags().StringVar(&method, "method", raster.MovingWindow.String(), "target: window or poly")
	cmd.Flags().IntVarP(&n, "n", "n", raster.DefaultStripeWindow,
		"window width for window, polynomial degree for poly")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")
	return cmd
}

func printStatistics(w io.Writer, s *raster.Statistics) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "pixels\t%s\t\n", humanize.Comma(s.PixelCount))
	invertible := "yes"
	if !s.Invertible() {
		invertible = "no (rx needs --pinv)"
	}
	fmt.Fprintf(tw, "invertible\t%s\t\n\n", invertible)
	fmt.Fprintln(tw, "band\tmean\tstddev\tmin\tmax\t")
	for k, b := range s.Bands {
		fmt.Fprintf(tw, "%d\t%.6g\t%.6g\t%.6g\t%.6g\t\n", b, s.Mean[k], s.StdDev[k], s.Min[k], s.Max[k])
	}
	matrix(tw, "covariance", s.Bands, s.Covariance)
	matrix(tw, "correlation", s.Bands, s.Correlation)
	return tw.Flush()
}

func matrix(w io.Writer, title string, bands []int, m [][]float64) {
	fmt.Fprintf(w, "\n%s\t", title)
	for _, b := range bands {
		fmt.Fprintf(w, "%d\t", b)
	}
	fmt.Fprintln(w)
	for i, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%.6g", v)
		}
		fmt.Fprintf(w, "%d\t%s\t\n", bands[i], strings.Join(cells, "\t"))
	}
}

func writeReport(path string, s *raster.Statistics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
