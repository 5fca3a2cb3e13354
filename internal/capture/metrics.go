package capture

import (
	"image"
	"math"
)

// sampleStride keeps per-tick metric cost proportional to a subsample of the
// frame rather than full resolution.
const sampleStride = 4

const (
	sharpnessScale  = 4.0
	maxStableDelta  = 30.0
	maxChannelValue = 255.0
)

// Metrics holds the per-frame quality measurements. Brightness, contrast and
// sharpness are on a 0-255 scale, stability and score on 0-100.
type Metrics struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
	Stability  float64 `json:"stability"`
	Score      int     `json:"score"`
	Feedback   string  `json:"feedback"`
}

func luminanceAt(img *image.RGBA, x, y int) float64 {
	i := img.PixOffset(x, y)
	r := float64(img.Pix[i])
	g := float64(img.Pix[i+1])
	b := float64(img.Pix[i+2])
	return 0.299*r + 0.587*g + 0.114*b
}

func sampleLuminance(img *image.RGBA) []float64 {
	bounds := img.Bounds()
	samples := make([]float64, 0, (bounds.Dx()/sampleStride+1)*(bounds.Dy()/sampleStride+1))
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStride {
			samples = append(samples, luminanceAt(img, x, y))
		}
	}
	return samples
}

// EstimateBrightness returns the mean luminance of a strided subsample of the
// frame, in [0,255].
func EstimateBrightness(img *image.RGBA) float64 {
	samples := sampleLuminance(img)
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, l := range samples {
		sum += l
	}
	return sum / float64(len(samples))
}

// EstimateContrast returns the standard deviation of the sampled luminance.
func EstimateContrast(img *image.RGBA) float64 {
	samples := sampleLuminance(img)
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, l := range samples {
		sum += l
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, l := range samples {
		d := l - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(samples)))
}

// EstimateSharpness approximates edge energy as the mean Euclidean norm of
// horizontal and vertical first differences at strided sample points, scaled
// and clamped to [0,255]. It is a gradient proxy, not a true Laplacian.
func EstimateSharpness(img *image.RGBA) float64 {
	bounds := img.Bounds()

	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStride {
			l := luminanceAt(img, x, y)

			var dx, dy float64
			if x+1 < bounds.Max.X {
				dx = luminanceAt(img, x+1, y) - l
			}
			if y+1 < bounds.Max.Y {
				dy = luminanceAt(img, x, y+1) - l
			}

			sum += math.Sqrt(dx*dx + dy*dy)
			count++
		}
	}

	if count == 0 {
		return 0
	}

	sharpness := sum / float64(count) * sharpnessScale
	return math.Min(sharpness, maxChannelValue)
}

// EstimateStability compares consecutive frames via mean absolute luminance
// delta, mapped so that zero delta scores 100 and a delta of maxStableDelta or
// more scores 0. A nil previous frame is treated as fully stable.
func EstimateStability(prev, cur *image.RGBA) float64 {
	if prev == nil {
		return 100
	}

	prevSamples := sampleLuminance(prev)
	curSamples := sampleLuminance(cur)

	n := len(prevSamples)
	if len(curSamples) < n {
		n = len(curSamples)
	}
	if n == 0 {
		return 100
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(curSamples[i] - prevSamples[i])
	}
	avgDelta := sum / float64(n)

	stability := 100 - avgDelta*(100/maxStableDelta)
	return math.Max(stability, 0)
}

// Analyze computes all four metrics for cur against the optional previous
// frame and folds them into a composite score with a feedback hint.
func Analyze(prev, cur *image.RGBA) Metrics {
	m := Metrics{
		Brightness: EstimateBrightness(cur),
		Contrast:   EstimateContrast(cur),
		Sharpness:  EstimateSharpness(cur),
		Stability:  EstimateStability(prev, cur),
	}
	m.Score, m.Feedback = Score(m)
	return m
}
