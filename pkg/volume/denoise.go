package volume

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"mprviewer/internal/models"
)

// fft1D is a complex FFT of one length together with the factor that makes
// a forward/backward pair the identity.
type fft1D struct {
	fft   *fourier.CmplxFFT
	scale float64
	freq  []float64
}

func newFFT1D(n int) *fft1D {
	fft := fourier.NewCmplxFFT(n)

	ones := make([]complex128, n)
	for i := range ones {
		ones[i] = 1
	}
	back := fft.Sequence(nil, fft.Coefficients(nil, ones))

	// frequency of every coefficient in cycles per sample
	freq := make([]float64, n)
	for k := range freq {
		if k <= n/2 {
			freq[k] = float64(k) / float64(n)
		} else {
			freq[k] = float64(k-n) / float64(n)
		}
	}
	return &fft1D{fft: fft, scale: 1 / real(back[0]), freq: freq}
}

// sliceFilter low-pass filters 2D slices in the frequency domain. It is not
// safe for concurrent use.
type sliceFilter struct {
	x, y     *fft1D
	gain     []float64
	spectrum []complex128
	line     []complex128
	out      []complex128
}

func newSliceFilter(width, height int, sigma float64) *sliceFilter {
	f := &sliceFilter{
		x:        newFFT1D(width),
		y:        newFFT1D(height),
		gain:     make([]float64, width*height),
		spectrum: make([]complex128, width*height),
		line:     make([]complex128, max(width, height)),
		out:      make([]complex128, max(width, height)),
	}
	// Gaussian of standard deviation sigma pixels
	k := -2 * math.Pi * math.Pi * sigma * sigma
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			fu, fv := f.x.freq[u], f.y.freq[v]
			f.gain[v*width+u] = math.Exp(k * (fu*fu + fv*fv))
		}
	}
	return f
}

// transform runs a forward or backward FFT over every row, then every column
func (f *sliceFilter) transform(forward bool) {
	width, height := len(f.x.freq), len(f.y.freq)
	apply := func(t *fft1D, src []complex128) []complex128 {
		if forward {
			return t.fft.Coefficients(f.out[:len(src)], src)
		}
		return t.fft.Sequence(f.out[:len(src)], src)
	}

	for y := 0; y < height; y++ {
		row := f.spectrum[y*width : (y+1)*width]
		copy(f.line[:width], row)
		copy(row, apply(f.x, f.line[:width]))
	}
	for x := 0; x < width; x++ {
		col := f.line[:height]
		for y := 0; y < height; y++ {
			col[y] = f.spectrum[y*width+x]
		}
		res := apply(f.y, col)
		for y := 0; y < height; y++ {
			f.spectrum[y*width+x] = res[y]
		}
	}
}

// filter smooths src into dst; both hold one row-major slice
func (f *sliceFilter) filter(dst, src []float64) {
	for i, v := range src {
		f.spectrum[i] = complex(v, 0)
	}
	f.transform(true)
	for i, g := range f.gain {
		f.spectrum[i] *= complex(g, 0)
	}
	f.transform(false)

	scale := f.x.scale * f.y.scale
	for i := range dst {
		dst[i] = real(f.spectrum[i]) * scale
	}
}

// Denoise returns a copy of v with every Z slice smoothed by a Gaussian of
// sigma pixels, applied in the frequency domain. A zero sigma returns an
// unfiltered copy.
func Denoise(v *models.Volume, sigma float64) (*models.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, fmt.Errorf("denoise sigma must not be negative, got %v", sigma)
	}

	out := *v
	out.Data = make([]float64, len(v.Data))
	if sigma == 0 {
		copy(out.Data, v.Data)
		return &out, nil
	}

	size := v.Width * v.Height
	var wg sync.WaitGroup
	numCores := runtime.NumCPU()
	slicesPerCore := (v.Depth + numCores - 1) / numCores

	for c := 0; c < numCores; c++ {
		startSlice := c * slicesPerCore
		endSlice := startSlice + slicesPerCore
		if endSlice > v.Depth {
			endSlice = v.Depth
		}
		if startSlice >= endSlice {
			break
		}

		wg.Add(1)
		go func(startSlice, endSlice int) {
			defer wg.Done()
			f := newSliceFilter(v.Width, v.Height, sigma)
			for z := startSlice; z < endSlice; z++ {
				f.filter(out.Data[z*size:(z+1)*size], v.Data[z*size:(z+1)*size])
			}
		}(startSlice, endSlice)
	}
	wg.Wait()

	return &out, nil
}
