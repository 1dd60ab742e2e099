// Package cmd implements the homography command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"homography-finder/internal/alignment"
	himage "homography-finder/internal/image"
	"homography-finder/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// state is shared by the root command and its subcommands.
type state struct {
	cfgFile string
	v       *viper.Viper
	cfg     *Config
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds a fresh command tree with its own viper instance,
// so tests can execute commands repeatedly.
func NewRootCommand() *cobra.Command {
	st := &state{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "homography",
		Short: "Estimate and preview homographies between two images",
		Long: `Headless companion to the Homography Finder GUI.

Reads point correspondences from a YAML pairs file
(image1[i] in the first image pairs with image2[i] in the second) and:
- estimates the 3x3 homography mapping image 1 onto image 2
- warps image 2 into image 1's frame and writes the blended preview
- optionally plots the per-pair reprojection residuals

Examples:
  homography estimate --pairs pairs.yaml --format json
  homography preview --image-a a.png --image-b b.png --pairs pairs.yaml --out preview.png`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := NewLoader(st.v).Load(st.cfgFile)
			if err != nil {
				return err
			}
			st.cfg = cfg

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.Level(),
			}))
			slog.SetDefault(logger)
			slog.Debug("configuration loaded", "config", st.v.ConfigFileUsed(),
				"estimator", cfg.Estimator, "warper", cfg.Warper, "threshold", cfg.Threshold)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetVersionTemplate(version.String() + "\n")

	defaults := alignment.DefaultOptions()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&st.cfgFile, "config", "", "config file (default is search in . and $HOME/.config/homography-finder)")
	flags.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("estimator", alignment.DefaultEstimator,
		fmt.Sprintf("homography estimator (%s)", strings.Join(alignment.Names(), ", ")))
	flags.String("warper", himage.DefaultWarper,
		fmt.Sprintf("image warper (%s)", strings.Join(himage.WarperNames(), ", ")))
	flags.Float64("threshold", defaults.Threshold, "RANSAC inlier threshold in pixels")
	flags.Int("max-iterations", defaults.MaxIterations, "RANSAC iteration limit")
	flags.Float64("confidence", defaults.Confidence, "RANSAC early-exit confidence")
	flags.Int64("seed", defaults.Seed, "RANSAC sampling seed")

	bindings := map[string]string{
		"verbose":        "verbose",
		"log_level":      "log-level",
		"estimator":      "estimator",
		"warper":         "warper",
		"threshold":      "threshold",
		"max_iterations": "max-iterations",
		"confidence":     "confidence",
		"seed":           "seed",
	}
	for key, name := range bindings {
		_ = st.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(newEstimateCommand(st), newPreviewCommand(st))
	return rootCmd
}
