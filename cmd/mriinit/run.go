package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriinit/internal/models"
	"mriinit/pkg/config"
	"mriinit/pkg/initialiser"
	"mriinit/pkg/transform"
	"mriinit/pkg/visualization"
	"mriinit/pkg/volumeio"
)

var (
	image1Dir   string
	image2Dir   string
	mask1Dir    string
	mask2Dir    string
	initName    string
	lmax        int
	configPath  string
	outputPath  string
	initialPath string
	previewDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Initialise a transform between two volumes",
	Long: `Loads two volumes (and optional masks) from slice-image directories, runs the
selected initialisation strategy and writes the resulting transform as YAML.

Strategies: mass, geometric, moments, mass_unmasked, moments_use_mask_intensity,
moments_unmasked, fod, set_centre_mass, none.`,
	RunE: runInitialisation,
}

func init() {
	runCmd.Flags().StringVar(&image1Dir, "image1", "", "Directory holding the slices of image 1 (required)")
	runCmd.Flags().StringVar(&image2Dir, "image2", "", "Directory holding the slices of image 2 (required)")
	runCmd.Flags().StringVar(&mask1Dir, "mask1", "", "Directory holding the slices of the mask of image 1")
	runCmd.Flags().StringVar(&mask2Dir, "mask2", "", "Directory holding the slices of the mask of image 2")
	runCmd.Flags().StringVar(&initName, "init", "", "Initialisation strategy (overrides the config file)")
	runCmd.Flags().IntVar(&lmax, "lmax", initialiser.LmaxNative, "Spherical harmonic degree for fod (-1 = largest stored by both images)")
	runCmd.Flags().StringVar(&configPath, "config", "mriinit.yaml", "Configuration file")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Transform output file (overrides the config file)")
	runCmd.Flags().StringVar(&initialPath, "initial", "", "Transform file to start from instead of the identity")
	runCmd.Flags().StringVar(&previewDir, "preview-dir", "", "Directory for slices through the initialised centre")

	runCmd.MarkFlagRequired("image1")
	runCmd.MarkFlagRequired("image2")
	rootCmd.AddCommand(runCmd)
}

func runInitialisation(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.Output.Verbose && !cmd.Flags().Changed("log-level") {
		setupLogger(slog.LevelDebug)
	}

	slog.Info("Loading volumes", "image1", image1Dir, "image2", image2Dir)
	im1, err := loadVolume(image1Dir, cfg.Geometry.Image1)
	if err != nil {
		return fmt.Errorf("failed to load image 1: %w", err)
	}
	im2, err := loadVolume(image2Dir, cfg.Geometry.Image2)
	if err != nil {
		return fmt.Errorf("failed to load image 2: %w", err)
	}
	m1, err := loadVolume(mask1Dir, cfg.Geometry.Image1)
	if err != nil {
		return fmt.Errorf("failed to load mask 1: %w", err)
	}
	m2, err := loadVolume(mask2Dir, cfg.Geometry.Image2)
	if err != nil {
		return fmt.Errorf("failed to load mask 2: %w", err)
	}

	tr := transform.NewAffine()
	if initialPath != "" {
		p, err := transform.LoadParams(initialPath)
		if err != nil {
			return err
		}
		if tr, err = transform.FromParams(p); err != nil {
			return fmt.Errorf("invalid initial transform %s: %w", initialPath, err)
		}
	}

	in := initialiser.New(cfg.InitialiserOptions(logger))
	req := initialiser.Request{
		Image1: im1,
		Image2: im2,
		Mask1:  m1,
		Mask2:  m2,
		Kind:   cfg.Initialisation.Type,
		Lmax:   cfg.Initialisation.Lmax,
	}

	start := time.Now()
	res, err := in.Run(req, tr)
	if err != nil {
		return err
	}
	slog.Info("Initialisation complete", "init", res.Kind.String(), "elapsed", time.Since(start), "warnings", len(res.Warnings))

	printResult(cmd.OutOrStdout(), res, tr)

	if err := transform.SaveParams(tr.Params(), cfg.Output.TransformFile); err != nil {
		return err
	}
	slog.Info("Saved transform", "path", cfg.Output.TransformFile)

	if cfg.Output.PreviewDir != "" && res.Kind != initialiser.None {
		if err := savePreviews(cfg.Output.PreviewDir, im1, im2, tr); err != nil {
			slog.Warn("Failed to save previews", "error", err)
		}
	}
	return nil
}

// applyFlags lets explicitly set flags override the configuration file
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("init") {
		kind, err := initialiser.ParseInitType(initName)
		if err != nil {
			return err
		}
		cfg.Initialisation.Type = kind
	}
	if flags.Changed("lmax") {
		cfg.Initialisation.Lmax = lmax
	}
	if flags.Changed("output") {
		cfg.Output.TransformFile = outputPath
	}
	if flags.Changed("preview-dir") {
		cfg.Output.PreviewDir = previewDir
	}
	return cfg.Validate()
}

// loadVolume loads a slice-stack volume; an empty directory name means absent
func loadVolume(dir string, geom config.VolumeGeometry) (*models.Volume, error) {
	if dir == "" {
		return nil, nil
	}
	vol, err := volumeio.LoadVolume(dir, volumeio.Geometry{VoxelSize: geom.VoxelSize, Origin: geom.OriginVec()})
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded volume", "dir", dir, "width", vol.Width, "height", vol.Height, "depth", vol.Depth, "components", vol.Components)
	return vol, nil
}

func printResult(w io.Writer, res *initialiser.Result, tr *transform.Affine) {
	c, t := tr.Centre(), tr.Translation()
	fmt.Fprintf(w, "Initialisation: %s\n", res.Kind)
	fmt.Fprintf(w, "Centre:      %10.4f %10.4f %10.4f\n", c.X, c.Y, c.Z)
	fmt.Fprintf(w, "Translation: %10.4f %10.4f %10.4f\n", t.X, t.Y, t.Z)
	if res.Rotation != nil {
		fmt.Fprintf(w, "Rotation:\n%.4f\n", mat.Formatted(res.Rotation, mat.Prefix("")))
	}
	fmt.Fprintf(w, "Transform:\n%.4f\n", mat.Formatted(tr.Matrix()))
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warn)
	}
}

// savePreviews writes slices of both images through the initialised
// centre. The centre lives in the midway space: the half transform carries
// it into image 1 and its inverse into image 2.
func savePreviews(dir string, im1, im2 *models.Volume, tr *transform.Affine) error {
	centre := tr.Centre()
	previews := []struct {
		name string
		vol  *models.Volume
		at   r3.Vec
	}{
		{name: "image1", vol: im1, at: tr.TransformHalf(centre)},
		{name: "image2", vol: im2, at: tr.TransformHalfInverse(centre)},
	}

	for _, p := range previews {
		viewer, err := visualization.NewViewer(p.vol, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		paths, err := viewer.SaveOrthogonalSlices(p.at, dir, p.name)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		slog.Info("Saved previews", "image", p.name, "files", paths)
	}
	return nil
}
