// Package volume builds models.Volume values from 2D slice images on disk
// or from a synthetic phantom, and writes volumes back out as slice stacks.
package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mprviewer/internal/models"
)

// MaxIntensity is the sample value of a white pixel. Slices are stored on a
// 12-bit scale so window/level drags move in whole steps.
const MaxIntensity = 4095.0

// LoadOptions describe the physical layout of a slice stack
type LoadOptions struct {
	// PixelSpacing is the in-plane size of a pixel in mm
	PixelSpacing float64

	// SliceGap is the distance between consecutive slices in mm
	SliceGap float64
}

// DefaultLoadOptions returns square 1 mm pixels and a 1.5 mm slice gap
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{PixelSpacing: 1.0, SliceGap: 1.5}
}

// Load reads every JPEG or PNG slice in dir, ordered by the number in the
// filename, into a volume. All slices must have the same dimensions.
func Load(dir string, opts LoadOptions, log *logrus.Entry) (*models.Volume, error) {
	if opts.PixelSpacing <= 0 || opts.SliceGap <= 0 {
		return nil, fmt.Errorf("pixel spacing and slice gap must be positive")
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(file.Name())) {
		case ".jpg", ".jpeg", ".png":
			imageFiles = append(imageFiles, file.Name())
		}
	}
	if len(imageFiles) < 2 {
		return nil, fmt.Errorf("need at least 2 slice images in %s, found %d", dir, len(imageFiles))
	}

	// slice order follows the number in the filename
	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var vol *models.Volume
	for z, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if vol == nil {
			vol = models.NewVolume(bounds.Dx(), bounds.Dy(), len(imageFiles))
			vol.VoxelSize.X = opts.PixelSpacing
			vol.VoxelSize.Y = opts.PixelSpacing
			vol.VoxelSize.Z = opts.SliceGap
		} else if bounds.Dx() != vol.Width || bounds.Dy() != vol.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), vol.Width, vol.Height)
		}

		copy(vol.Data[z*vol.Width*vol.Height:], imageToFloat(img))
	}

	if log != nil {
		log.Infof("loaded %d slices with dimensions %dx%d, slice gap %.1f mm",
			vol.Depth, vol.Width, vol.Height, opts.SliceGap)
	}
	return vol, vol.Validate()
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage decodes a JPEG or PNG file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return png.Decode(file)
	}
	return jpeg.Decode(file)
}

// imageToFloat converts the red channel of an image to samples in
// [0, MaxIntensity]
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = math.Round(float64(r) / 65535.0 * MaxIntensity)
		}
	}

	return result
}

// floatToImage converts samples in [0, MaxIntensity] back to a grayscale image
func floatToImage(data []float64, width, height int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if idx < len(data) {
				value := math.Max(0, math.Min(1, data[idx]/MaxIntensity))
				img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(value * 65535.0))})
			}
		}
	}

	return img
}

// SaveSlices writes every Z slice of v to outputDir as slice_NNN.png and
// returns the number of files written.
func SaveSlices(v *models.Volume, outputDir string) (int, error) {
	if err := v.Validate(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	size := v.Width * v.Height
	for z := 0; z < v.Depth; z++ {
		img := floatToImage(v.Data[z*size:(z+1)*size], v.Width, v.Height)

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%03d.png", z))
		file, err := os.Create(filename)
		if err != nil {
			return z, err
		}
		err = png.Encode(file, img)
		file.Close()
		if err != nil {
			return z, err
		}
	}
	return v.Depth, nil
}

// Summary describes the intensity distribution of a volume
type Summary struct {
	Min, Max     float64
	Mean, StdDev float64
}

// Summarize computes the intensity statistics of v
func Summarize(v *models.Volume) Summary {
	if len(v.Data) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(v.Data, nil)
	return Summary{
		Min:    floats.Min(v.Data),
		Max:    floats.Max(v.Data),
		Mean:   mean,
		StdDev: std,
	}
}

// DefaultWindow is the window covering the full data range of v
func DefaultWindow(v *models.Volume) models.Window {
	s := Summarize(v)
	return models.WindowFromRange(s.Min, s.Max)
}
