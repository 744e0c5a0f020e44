package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"mprviewer/internal/models"
	"mprviewer/pkg/config"
	"mprviewer/pkg/mpr"
	"mprviewer/pkg/visualization"
	"mprviewer/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "mprviewer.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	inputDir := flag.String("input", "", "Directory containing 2D slice images (empty: synthetic phantom)")
	outputDir := flag.String("output", "", "Directory for rendered frames (overrides output.frameDir)")
	toolName := flag.String("tool", "", "Tool to activate: level, crosshair, pan or zoom (overrides interaction.defaultTool)")
	sliceGap := flag.Float64("gap", 0, "Inter-slice gap in mm (overrides volume.sliceGap)")
	pixelSpacing := flag.Float64("spacing", 0, "In-plane pixel spacing in mm (overrides volume.pixelSpacing)")
	phantomSize := flag.Int("phantom-size", 64, "Edge length of the synthetic phantom in voxels")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.FrameDir = *outputDir
	}
	if *verbose {
		cfg.Output.Verbose = true
	}
	if *sliceGap > 0 {
		cfg.Volume.SliceGap = *sliceGap
	}
	if *pixelSpacing > 0 {
		cfg.Volume.PixelSpacing = *pixelSpacing
	}
	if *toolName != "" {
		if cfg.Interaction.DefaultTool, err = models.ParseTool(*toolName); err != nil {
			log.Fatalf("Invalid tool: %v", err)
		}
	}
	logger := config.NamedLogger("mprviewer", cfg.Output.Verbose)

	fmt.Println("================================")
	fmt.Println("MULTIPLANAR RECONSTRUCTION VIEWER")
	fmt.Println("Three synchronized orthogonal views of one volume")
	fmt.Println("================================")

	// Load the volume
	var vol *models.Volume
	if *inputDir != "" {
		opts := volume.LoadOptions{PixelSpacing: cfg.Volume.PixelSpacing, SliceGap: cfg.Volume.SliceGap}
		vol, err = volume.Load(*inputDir, opts, logger)
	} else {
		fmt.Printf("No input directory given, synthesizing a %d^3 phantom\n", *phantomSize)
		vol, err = volume.NewPhantom(*phantomSize, *phantomSize, *phantomSize)
	}
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	if cfg.Volume.DenoiseSigma > 0 {
		fmt.Printf("Denoising slices (sigma %.1f px)...\n", cfg.Volume.DenoiseSigma)
		if vol, err = volume.Denoise(vol, cfg.Volume.DenoiseSigma); err != nil {
			log.Fatalf("Failed to denoise volume: %v", err)
		}
	}
	summary := volume.Summarize(vol)
	fmt.Printf("Volume: %dx%dx%d voxels, intensities [%.0f, %.0f], mean %.1f\n",
		vol.Width, vol.Height, vol.Depth, summary.Min, summary.Max, summary.Mean)

	viewer := visualization.NewViewerFromConfig(cfg)
	coordinator := mpr.NewCoordinator(viewer, mpr.OptionsFromConfig(cfg))
	sess := &session{cfg: cfg, viewer: viewer, c: coordinator}

	startTime := time.Now()
	if err := sess.run(vol); err != nil {
		log.Fatalf("MPR session failed: %v", err)
	}

	diag := coordinator.Diagnostics()
	if err := coordinator.Destroy(); err != nil {
		log.Printf("Warning: failed to release views: %v", err)
	}

	fmt.Printf("\nSession completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("- Operations: %d\n", diag.Events)
	fmt.Printf("- Active tool: %s\n", diag.ActiveTool)
	fmt.Printf("- Degenerate intersections: %d\n", diag.SolverFailures)
	fmt.Printf("Frames saved to: %s\n", cfg.Output.FrameDir)
}

// session drives a scripted sequence of interactions and saves the frames
// of every step.
type session struct {
	cfg    *config.Config
	viewer *visualization.Viewer
	c      *mpr.Coordinator
	step   int
}

func (s *session) run(vol *models.Volume) error {
	keys := s.cfg.Views.Keys
	top, left := keys[0], keys[1]

	if _, err := s.c.Initialize(keys); err != nil {
		return err
	}
	if err := s.c.SetVolume(vol); err != nil {
		return err
	}
	if err := s.c.SetActiveTool(s.cfg.Interaction.DefaultTool); err != nil {
		return err
	}
	if err := s.save("initial"); err != nil {
		return err
	}

	if _, err := s.c.OnRotate(top, models.AxisX, 30); err != nil {
		return err
	}
	if err := s.save("rotate"); err != nil {
		return err
	}

	if _, err := s.c.OnThickness(left, models.AxisY, 8); err != nil {
		return err
	}
	if err := s.save("slab"); err != nil {
		return err
	}

	// wheel scrolling works with every tool
	for i := 0; i < 5; i++ {
		ev := models.MouseEvent{Kind: models.EventScroll, WheelDelta: 1}
		if _, err := s.c.HandleEvent(top, ev); err != nil {
			return err
		}
	}
	if err := s.save("scroll"); err != nil {
		return err
	}

	state, err := s.c.Snapshot()
	if err != nil {
		return err
	}
	target := r3.Add(state.SliceIntersection, r3.Vec{X: float64(vol.Width) / 6, Y: float64(vol.Height) / 6})
	if _, err := s.c.OnCrosshairSelect(top, target); err != nil {
		return err
	}
	if err := s.save("crosshair"); err != nil {
		return err
	}

	window := volume.DefaultWindow(vol)
	if _, err := s.c.UpdateWindowLevel(top, window.Center, window.Width/2); err != nil {
		return err
	}
	if err := s.save("window"); err != nil {
		return err
	}
	rel, err := s.c.RelativeWindow(top)
	if err != nil {
		return err
	}
	fmt.Printf("  relative window %.2f/%.2f of the data range\n", rel.Width, rel.Center)

	// measure across the middle of the top view
	w, h := float64(s.cfg.Render.Width), float64(s.cfg.Render.Height)
	picks := []r2.Vec{{X: w / 4, Y: h / 2}, {X: w / 2, Y: h / 2}, {X: w / 2, Y: h / 4}}
	var m models.Measurement
	for _, p := range picks[:2] {
		if m, err = s.c.OnMeasure(top, models.MeasureLength, p); err != nil {
			return err
		}
	}
	fmt.Printf("  length: %s\n", m.Label)
	for _, p := range picks {
		if m, err = s.c.OnMeasure(top, models.MeasureAngle, p); err != nil {
			return err
		}
	}
	fmt.Printf("  angle: %s\n", m.Label)

	// drag with the active tool across the top view
	center := r2.Vec{X: float64(s.cfg.Render.Width) / 2, Y: float64(s.cfg.Render.Height) / 2}
	drag := []models.MouseEvent{
		{Kind: models.EventPress, Button: models.ButtonLeft, Position: center},
		{Kind: models.EventMove, Position: r2.Add(center, r2.Vec{X: 20, Y: 10})},
		{Kind: models.EventRelease, Button: models.ButtonLeft},
	}
	for _, ev := range drag {
		if _, err := s.c.HandleEvent(top, ev); err != nil {
			return err
		}
	}
	return s.save("drag")
}

// save writes the current frame of every view and prints the shared state
func (s *session) save(stage string) error {
	s.step++
	state, err := s.c.Snapshot()
	if err != nil {
		return err
	}

	prefix := fmt.Sprintf("%02d_%s", s.step, stage)
	paths, err := s.viewer.SaveFrames(s.cfg.Output.FrameDir, prefix)
	if err != nil {
		return fmt.Errorf("saving %s frames: %w", stage, err)
	}

	p := state.SliceIntersection
	fmt.Printf("\n[%s] intersection (%.1f, %.1f, %.1f)", prefix, p.X, p.Y, p.Z)
	if state.IntersectionStale {
		fmt.Print(" (stale)")
	}
	fmt.Println()
	for _, key := range s.cfg.Views.Keys {
		vs := state.Views[key]
		fmt.Printf("  %-6s rot x=%.0f y=%.0f  slab %.1f %v  wwwl %.0f/%.0f\n",
			key, vs.XRotation, vs.YRotation, vs.SliceThickness, vs.BlendMode, vs.Window.Width, vs.Window.Center)
	}
	fmt.Printf("  %d frames written\n", len(paths))
	return nil
}
