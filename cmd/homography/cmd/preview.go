package cmd

import (
	"fmt"
	"log/slog"

	"homography-finder/internal/correspondence"
	himage "homography-finder/internal/image"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

func newPreviewCommand(st *state) *cobra.Command {
	var (
		imageA, imageB string
		pairsPath      string
		outPath        string
		plotPath       string
		alpha          float64
		swap           bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Warp image 2 into image 1 and write the blended preview",
		Long: `Estimate the homography mapping image 2 onto image 1, warp image 2 into
image 1's frame and write the alpha blend of the two. The output format
follows the --out extension (png, jpg, gif, tif, bmp).
Image paths default to image_a and image_b in the pairs file.`,
		Example: `  homography preview --image-a a.png --image-b b.png --pairs pairs.yaml --out preview.png
  homography preview --image-a a.png --image-b b.png --pairs pairs.yaml --out preview.png --alpha 0.8 --swap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if alpha < 0 || alpha > 1 {
				return fmt.Errorf("alpha must be in [0, 1], got %g", alpha)
			}

			pairs, set, err := loadPairs(pairsPath)
			if err != nil {
				return err
			}
			if imageA == "" {
				imageA = pairs.ImagePath(pairsPath, correspondence.SideA)
			}
			if imageB == "" {
				imageB = pairs.ImagePath(pairsPath, correspondence.SideB)
			}
			if imageA == "" || imageB == "" {
				return fmt.Errorf("both images are needed: pass --image-a and --image-b or name them in %s", pairsPath)
			}
			a, err := himage.Load(imageA)
			if err != nil {
				return err
			}
			b, err := himage.Load(imageB)
			if err != nil {
				return err
			}

			src, dst := set.Points(correspondence.SideB), set.Points(correspondence.SideA)
			res, err := runEstimator(st.cfg, src, dst)
			if err != nil {
				return err
			}

			warp, err := himage.LookupWarper(st.cfg.Warper)
			if err != nil {
				return err
			}
			warped, err := warp(b.Image, res.H, a.Size())
			if err != nil {
				return fmt.Errorf("warp failed: %w", err)
			}

			c := himage.NewCompositor(a.Image, warped)
			c.SetAlpha(alpha)
			if swap {
				c.Swap()
			}
			if err := imaging.Save(c.Blended(), outPath); err != nil {
				return fmt.Errorf("failed to write preview: %w", err)
			}
			slog.Info("preview written", "path", outPath, "alpha", c.Alpha(), "swapped", c.Swapped())
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)

			if plotPath != "" {
				residuals := newReport(st.cfg.Estimator, "image2->image1", res, src, dst).Residuals
				if err := SaveResidualPlot(plotPath, residuals, st.cfg.Threshold); err != nil {
					return err
				}
				slog.Info("residual plot written", "path", plotPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&imageA, "image-a", "a", "", "image 1, the reference frame (default: image_a from the pairs file)")
	cmd.Flags().StringVarP(&imageB, "image-b", "b", "", "image 2, warped onto image 1 (default: image_b from the pairs file)")
	cmd.Flags().StringVarP(&pairsPath, "pairs", "p", "", "YAML pairs file (image1/image2 point lists)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output image (.png, .jpg, .gif, .tif, .bmp)")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a residual bar chart to this file (.png, .svg, .pdf)")
	cmd.Flags().Float64Var(&alpha, "alpha", himage.DefaultAlpha, "opacity of the top layer (0-1)")
	cmd.Flags().BoolVar(&swap, "swap", false, "put the warped image at the bottom")
	for _, name := range []string{"pairs", "out"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
