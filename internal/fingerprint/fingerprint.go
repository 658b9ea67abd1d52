// Package fingerprint computes perceptual hashes and thumbnails of uploaded
// photos.
package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"
	"slices"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	dctSize  = 32
	hashSide = 8
)

// Hashes holds the 64-bit perceptual hashes of a photo.
type Hashes struct {
	PHash uint64 // DCT based hash
	DHash uint64 // gradient based hash
}

// PHashHex returns the pHash as 16 hex digits.
func (h Hashes) PHashHex() string { return fmt.Sprintf("%016x", h.PHash) }

// DHashHex returns the dHash as 16 hex digits.
func (h Hashes) DHashHex() string { return fmt.Sprintf("%016x", h.DHash) }

// ParseHex parses a hash written by PHashHex or DHashHex.
func ParseHex(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// Compute returns both hashes of img.
func Compute(img image.Image) Hashes {
	return Hashes{PHash: pHash(img), DHash: dHash(img)}
}

// HammingDistance counts the bits that differ between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two hashes differ in at most threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}

// pHash thresholds the low frequency DCT coefficients of a 32x32 grayscale
// copy against their median. The DC coefficient is left out.
func pHash(img image.Image) uint64 {
	gray := luminance(scale(img, dctSize, dctSize))
	coeffs := dct2(gray)

	low := make([]float64, 0, hashSide*hashSide-1)
	for u := range hashSide {
		for v := range hashSide {
			if u == 0 && v == 0 {
				continue
			}
			low = append(low, coeffs[u][v])
		}
	}
	median := median(low)

	var hash uint64
	for i, c := range low {
		if c > median {
			hash |= 1 << (62 - i)
		}
	}
	return hash
}

// dHash compares horizontally adjacent pixels of a 9x8 grayscale copy.
func dHash(img image.Image) uint64 {
	gray := luminance(scale(img, hashSide+1, hashSide))

	var hash uint64
	bit := 63
	for y := range hashSide {
		for x := range hashSide {
			if gray[y][x] > gray[y][x+1] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

func scale(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// luminance returns BT.601 luma rows of img.
func luminance(img *image.RGBA) [][]float64 {
	b := img.Bounds()
	rows := make([][]float64, b.Dy())
	for y := range rows {
		rows[y] = make([]float64, b.Dx())
		for x := range rows[y] {
			i := img.PixOffset(x, y)
			p := img.Pix[i : i+3]
			rows[y][x] = 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
		}
	}
	return rows
}

// dct2 applies a separable two dimensional DCT-II to a square matrix.
func dct2(m [][]float64) [][]float64 {
	n := len(m)
	t := fourier.NewDCT(n)

	rows := make([][]float64, n)
	for y := range n {
		rows[y] = t.Transform(make([]float64, n), m[y])
	}

	out := make([][]float64, n)
	for u := range out {
		out[u] = make([]float64, n)
	}
	col := make([]float64, n)
	res := make([]float64, n)
	for x := range n {
		for y := range n {
			col[y] = rows[y][x]
		}
		t.Transform(res, col)
		for u := range n {
			out[u][x] = res[u]
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Thumbnail scales img to fit a size x size box and encodes it as JPEG.
func Thumbnail(img image.Image, size int) ([]byte, error) {
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
