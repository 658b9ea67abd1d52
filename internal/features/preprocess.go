package features

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/orchid/internal/config"
)

const blurSigma = 1.0

// sample is a preprocessed photo with its foreground mask.
type sample struct {
	img   *image.NRGBA
	w, h  int
	fg    []bool // row-major, true for foreground pixels
	count int    // number of foreground pixels
}

func (s *sample) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.w && y < s.h && s.fg[y*s.w+x]
}

func (s *sample) rgb(x, y int) (r, g, b uint8) {
	i := s.img.PixOffset(x, y)
	p := s.img.Pix
	return p[i], p[i+1], p[i+2]
}

// prepare scales the image and, when segmentation is configured, separates
// the foreground from the background and crops to it.
func prepare(img image.Image, cfg *config.PreprocessConfig) *sample {
	var nrgba *image.NRGBA
	if cfg != nil && cfg.MaxDim > 0 {
		b := img.Bounds()
		if b.Dx() > cfg.MaxDim || b.Dy() > cfg.MaxDim {
			nrgba = imaging.Fit(img, cfg.MaxDim, cfg.MaxDim, imaging.Lanczos)
		}
	}
	if nrgba == nil {
		nrgba = imaging.Clone(img)
	}

	if cfg == nil || cfg.Segmentation == nil {
		return wholeImage(nrgba)
	}
	return segment(nrgba, cfg.Segmentation)
}

func wholeImage(img *image.NRGBA) *sample {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	fg := make([]bool, w*h)
	for i := range fg {
		fg[i] = true
	}
	return &sample{img: img, w: w, h: h, fg: fg, count: len(fg)}
}

// segment thresholds a blurred grayscale copy with Otsu's method. The side
// of the threshold that covers most of the image border is background.
func segment(img *image.NRGBA, cfg *config.SegmentationConfig) *sample {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return wholeImage(img)
	}

	gray := imaging.Grayscale(img)
	for range max(cfg.Iterations, 1) {
		gray = imaging.Blur(gray, blurSigma)
	}

	var hist [256]int
	for y := range h {
		for x := range w {
			hist[gray.Pix[gray.PixOffset(x, y)]]++
		}
	}
	t := otsuThreshold(hist, w*h)

	above := make([]bool, w*h)
	borderAbove, border := 0, 0
	for y := range h {
		for x := range w {
			a := gray.Pix[gray.PixOffset(x, y)] > t
			above[y*w+x] = a
			if x == 0 || y == 0 || x == w-1 || y == h-1 {
				border++
				if a {
					borderAbove++
				}
			}
		}
	}
	backgroundAbove := borderAbove*2 > border

	minX, minY, maxX, maxY := w, h, -1, -1
	for y := range h {
		for x := range w {
			if above[y*w+x] == backgroundAbove {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < 0 {
		return wholeImage(img)
	}

	m := max(cfg.Margin, 0)
	rect := image.Rect(max(minX-m, 0), max(minY-m, 0), min(maxX+m+1, w), min(maxY+m+1, h))
	cropped := imaging.Crop(img, rect)

	s := &sample{img: cropped, w: rect.Dx(), h: rect.Dy()}
	s.fg = make([]bool, s.w*s.h)
	for y := range s.h {
		for x := range s.w {
			if above[(y+rect.Min.Y)*w+x+rect.Min.X] != backgroundAbove {
				s.fg[y*s.w+x] = true
				s.count++
			}
		}
	}
	return s
}

// otsuThreshold returns the gray level that maximizes the between-class
// variance of hist.
func otsuThreshold(hist [256]int, total int) uint8 {
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, best float64
	var wB int
	var t uint8
	for i, n := range hist {
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i * n)
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			t = uint8(i)
		}
	}
	return t
}

// maskImage renders the foreground mask, white on black.
func (s *sample) maskImage() *image.Gray {
	m := image.NewGray(image.Rect(0, 0, s.w, s.h))
	for y := range s.h {
		for x := range s.w {
			if s.fg[y*s.w+x] {
				m.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return m
}
