package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"homography-finder/internal/alignment"
	"homography-finder/internal/correspondence"
	"homography-finder/internal/project"
	"homography-finder/pkg/geometry"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats for the estimate command.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the estimate command's output.
type Report struct {
	Direction  string      `json:"direction" yaml:"direction"`
	Estimator  string      `json:"estimator" yaml:"estimator"`
	Pairs      int         `json:"pairs" yaml:"pairs"`
	Inliers    int         `json:"inliers" yaml:"inliers"`
	RMSE       float64     `json:"rmse" yaml:"rmse"`
	Homography [][]float64 `json:"homography" yaml:"homography"`
	Residuals  []float64   `json:"residuals" yaml:"residuals"`
}

func newEstimateCommand(st *state) *cobra.Command {
	var (
		pairsPath string
		format    string
		plotPath  string
		reverse   bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the homography for a pairs file",
		Long: `Estimate the 3x3 homography that maps image 1 points onto image 2 points.
With --reverse the matrix maps image 2 onto image 1, the direction used for previews.`,
		Example: `  homography estimate --pairs pairs.yaml
  homography estimate --pairs pairs.yaml --format yaml --reverse --plot residuals.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case FormatText, FormatJSON, FormatYAML:
			default:
				return fmt.Errorf("unsupported format %q (text, json, yaml)", format)
			}

			_, set, err := loadPairs(pairsPath)
			if err != nil {
				return err
			}

			src, dst := set.Points(correspondence.SideA), set.Points(correspondence.SideB)
			direction := "image1->image2"
			if reverse {
				src, dst = dst, src
				direction = "image2->image1"
			}

			res, err := runEstimator(st.cfg, src, dst)
			if err != nil {
				return err
			}

			report := newReport(st.cfg.Estimator, direction, res, src, dst)
			if plotPath != "" {
				if err := SaveResidualPlot(plotPath, report.Residuals, st.cfg.Threshold); err != nil {
					return err
				}
				slog.Info("residual plot written", "path", plotPath)
			}
			return writeReport(cmd.OutOrStdout(), format, report, res.H)
		},
	}

	cmd.Flags().StringVarP(&pairsPath, "pairs", "p", "", "YAML pairs file (image1/image2 point lists)")
	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "output format (text, json, yaml)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a residual bar chart to this file (.png, .svg, .pdf)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "estimate image 2 -> image 1 instead")
	_ = cmd.MarkFlagRequired("pairs")
	return cmd
}

// loadPairs reads a pairs file and validates it for estimation.
func loadPairs(path string) (*project.File, *correspondence.Set, error) {
	f, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	set, err := f.Set()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Debug("pairs loaded", "path", path, "pairs", set.Pairs())
	return f, set, nil
}

// runEstimator fits src onto dst with the configured backend. A fit with
// non-finite entries counts as degenerate.
func runEstimator(cfg *Config, src, dst []geometry.Point) (alignment.Result, error) {
	estimate, err := alignment.Lookup(cfg.Estimator)
	if err != nil {
		return alignment.Result{}, err
	}
	res, err := estimate(src, dst, cfg.Options())
	if err != nil {
		return alignment.Result{}, fmt.Errorf("estimation failed: %w", err)
	}
	if !res.H.IsFinite() {
		return alignment.Result{}, fmt.Errorf("estimation failed: %w", alignment.ErrDegenerateInput)
	}
	slog.Info("homography estimated", "pairs", len(src), "inliers", res.InlierCount, "rmse", res.RMSE)
	return res, nil
}

func newReport(estimator, direction string, res alignment.Result, src, dst []geometry.Point) Report {
	residuals := alignment.Residuals(res.H, src, dst)
	for i, r := range residuals {
		residuals[i] = finite(r)
	}
	return Report{
		Direction:  direction,
		Estimator:  estimator,
		Pairs:      len(src),
		Inliers:    res.InlierCount,
		RMSE:       res.RMSE,
		Homography: res.H.Rows(),
		Residuals:  residuals,
	}
}

func writeReport(w io.Writer, format string, report Report, h geometry.Homography) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		fmt.Fprintln(w, "Homography Matrix:")
		fmt.Fprintln(w, h)
		fmt.Fprintf(w, "direction: %s  pairs: %d  inliers: %d  rmse: %.4f px\n",
			report.Direction, report.Pairs, report.Inliers, report.RMSE)
		return nil
	}
}
