package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"voxeldist/internal/models"
	"voxeldist/pkg/config"
	"voxeldist/pkg/distance"
	"voxeldist/pkg/extract"
	"voxeldist/pkg/geometry"
	"voxeldist/pkg/nifti"
	"voxeldist/pkg/visualization"
)

func main() {
	// Load .env overrides if present; a missing file is fine
	_ = godotenv.Load()

	// Parse command line arguments
	pathA := flag.String("a", "", "First NIfTI volume (.nii or .nii.gz)")
	pathB := flag.String("b", "", "Second NIfTI volume (.nii or .nii.gz)")
	configPath := flag.String("config", "voxeldist.yaml", "Configuration file path")
	writeConfig := flag.Bool("write-config", false, "Write a default configuration file and exit")
	threshold := flag.Float64("threshold", 0, "Select voxels with values strictly above this threshold")
	label := flag.Float64("label", 0, "Select voxels with exactly this value instead of thresholding")
	boundary := flag.Bool("boundary", false, "Use only foreground voxels (value > 0) that touch the background")
	numCores := flag.Int("cores", runtime.NumCPU(), "Number of CPU cores to use (default: all available)")
	minOnly := flag.Bool("min-only", false, "Compute only the minimum distance (enables spatial indexing)")
	metrics := flag.Bool("metrics", false, "Also report nearest-neighbor surface metrics")
	renderDir := flag.String("render", "", "Directory to save projection images (empty: disabled)")
	verbose := flag.Bool("verbose", true, "Print progress while computing")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *pathA == "" || *pathB == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Configuration precedence: defaults, then file, then environment,
	// then explicitly set flags
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Failed to apply environment overrides: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "threshold":
			cfg.Extraction.Threshold = *threshold
		case "label":
			cfg.Extraction.Label = *label
		case "boundary":
			cfg.Extraction.UseBoundary = *boundary
		case "verbose":
			cfg.Output.Verbose = *verbose
		case "render":
			cfg.Output.RenderDir = *renderDir
		case "metrics":
			cfg.Output.Metrics = *metrics
		}
	})

	if cfg.Extraction.UseBoundary && cfg.Extraction.Label != 0 {
		log.Fatalf("Boundary extraction cannot be combined with label selection")
	}

	fmt.Println("================================")
	fmt.Println("VOXELDIST - DISTANCE EXTREMES BETWEEN SEGMENTED STRUCTURES")
	fmt.Println("================================")

	// Load both volumes
	if cfg.Output.Verbose {
		fmt.Printf("Loading volume A from: %s\n", *pathA)
	}
	volA, err := nifti.Read(*pathA)
	if err != nil {
		log.Fatalf("Failed to load volume A: %v", err)
	}
	if cfg.Output.Verbose {
		fmt.Printf("Loading volume B from: %s\n", *pathB)
	}
	volB, err := nifti.Read(*pathB)
	if err != nil {
		log.Fatalf("Failed to load volume B: %v", err)
	}

	// Select voxels and map them to world coordinates
	indicesA := selectIndices(volA, cfg)
	indicesB := selectIndices(volB, cfg)

	fmt.Printf("\nVolume A: %dx%dx%d (%d voxels), %d selected\n",
		volA.Width, volA.Height, volA.Depth, volA.NumVoxels(), len(indicesA))
	fmt.Printf("Volume B: %dx%dx%d (%d voxels), %d selected\n",
		volB.Width, volB.Height, volB.Depth, volB.NumVoxels(), len(indicesB))

	worldA, err := volA.Geometry.TransformAll(indicesA)
	if err != nil {
		log.Fatalf("Failed to map volume A to world space: %v", err)
	}
	worldB, err := volB.Geometry.TransformAll(indicesB)
	if err != nil {
		log.Fatalf("Failed to map volume B to world space: %v", err)
	}

	setA := distance.FromPoints(worldA)
	setB := distance.FromPoints(worldB)

	engine := distance.NewEngine(distance.Params{
		Workers:           cfg.Processing.NumCores,
		ParallelThreshold: cfg.Processing.ParallelThreshold,
		TreeThreshold:     cfg.Processing.TreeThreshold,
	})
	if cfg.Output.Verbose {
		lastDecile := 0
		engine.SetProgress(func(completed, total int) {
			if decile := completed * 10 / total; decile > lastDecile {
				lastDecile = decile
				fmt.Printf("  scanned %d%% of point pairs...\n", decile*10)
			}
		})
	}

	fmt.Printf("\nComputing distance extremes on %d cores...\n", cfg.Processing.NumCores)
	startTime := time.Now()

	if *minOnly {
		min, err := engine.Minimum(setA, setB)
		if err != nil {
			log.Fatalf("Distance computation failed: %v", err)
		}
		elapsed := time.Since(startTime)

		fmt.Printf("\nCompleted in %.2f seconds\n", elapsed.Seconds())
		fmt.Printf("\nResults (mm):\n")
		fmt.Printf("=============\n")
		fmt.Printf("Minimum distance: %.6f\n", min)
	} else {
		result, err := engine.Extremes(setA, setB)
		if err != nil {
			log.Fatalf("Distance computation failed: %v", err)
		}
		elapsed := time.Since(startTime)

		fmt.Printf("\nCompleted in %.2f seconds\n", elapsed.Seconds())
		fmt.Printf("\nResults (mm):\n")
		fmt.Printf("=============\n")
		fmt.Printf("Minimum distance: %.6f\n", result.Min)
		fmt.Printf("Maximum distance: %.6f\n", result.Max)
		fmt.Printf("Closest pair:  A %s <-> B %s\n",
			formatPoint(setA.At(result.MinA)), formatPoint(setB.At(result.MinB)))
		fmt.Printf("Farthest pair: A %s <-> B %s\n",
			formatPoint(setA.At(result.MaxA)), formatPoint(setB.At(result.MaxB)))
	}

	if cfg.Output.Metrics {
		m, err := engine.SurfaceMetrics(setA, setB)
		if err != nil {
			log.Fatalf("Surface metrics failed: %v", err)
		}

		fmt.Printf("\nSurface metrics (mm):\n")
		fmt.Printf("=====================\n")
		fmt.Printf("Mean distance A->B: %.6f\n", m.MeanAToB)
		fmt.Printf("Mean distance B->A: %.6f\n", m.MeanBToA)
		fmt.Printf("Average symmetric surface distance: %.6f\n", m.ASSD)
		fmt.Printf("Hausdorff distance: %.6f (A->B %.6f, B->A %.6f)\n",
			m.Hausdorff, m.HausdorffAToB, m.HausdorffBToA)
		fmt.Printf("95th percentile Hausdorff: %.6f\n", m.Hausdorff95)
	}

	// Save projection images if requested
	if cfg.Output.RenderDir != "" {
		fmt.Printf("\nSaving projection images to: %s\n", cfg.Output.RenderDir)

		rendererA := visualization.NewRenderer(volA)
		if err := rendererA.SaveProjectionSeries(filepath.Join(cfg.Output.RenderDir, "a")); err != nil {
			log.Printf("Warning: Failed to render volume A: %v", err)
		}
		rendererB := visualization.NewRenderer(volB)
		if err := rendererB.SaveProjectionSeries(filepath.Join(cfg.Output.RenderDir, "b")); err != nil {
			log.Printf("Warning: Failed to render volume B: %v", err)
		}

		// A fused overlay only makes sense when both masks share a grid
		if volA.Width == volB.Width && volA.Height == volB.Height && volA.Depth == volB.Depth {
			for _, axis := range []string{"x", "y", "z"} {
				img, err := visualization.FusedMIP(volA, volB, axis)
				if err != nil {
					log.Printf("Warning: Failed to fuse %s projection: %v", axis, err)
					continue
				}
				filename := filepath.Join(cfg.Output.RenderDir, fmt.Sprintf("fused_%s.jpg", axis))
				if err := rendererA.SaveJPEG(img, filename); err != nil {
					log.Printf("Warning: Failed to save fused %s projection: %v", axis, err)
				}
			}
		}
	}
}

// selectIndices applies the configured selection policy to a volume.
func selectIndices(vol *models.Volume, cfg *config.Config) []geometry.Index {
	switch {
	case cfg.Extraction.UseBoundary:
		return extract.Boundary(vol)
	case cfg.Extraction.Label != 0:
		return extract.Label(vol, cfg.Extraction.Label)
	default:
		return extract.AboveThreshold(vol, cfg.Extraction.Threshold)
	}
}

func formatPoint(p []float64) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p[0], p[1], p[2])
}
