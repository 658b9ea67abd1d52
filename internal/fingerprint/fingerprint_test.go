package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"one bit different", 0x1, 0x0, 1},
		{"four bits different", 0xF, 0x0, 4},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := HammingDistance(tc.hash1, tc.hash2)
			if result != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d",
					tc.hash1, tc.hash2, result, tc.expected)
			}
		})
	}
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name      string
		hash1     uint64
		hash2     uint64
		threshold int
		expected  bool
	}{
		{"identical with threshold 0", 0x0, 0x0, 0, true},
		{"4 bits different, threshold 4", 0x0, 0xF, 4, true},
		{"5 bits different, threshold 4", 0x0, 0x1F, 4, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Similar(tc.hash1, tc.hash2, tc.threshold)
			if result != tc.expected {
				t.Errorf("Similar(%x, %x, %d) = %v; want %v",
					tc.hash1, tc.hash2, tc.threshold, result, tc.expected)
			}
		})
	}
}

func TestCompute_Consistent(t *testing.T) {
	img := createGradientImage(100, 100)

	h1 := Compute(img)
	h2 := Compute(img)
	if h1 != h2 {
		t.Errorf("hashes should be consistent: %+v vs %+v", h1, h2)
	}
	if h1.PHash == 0 && h1.DHash == 0 {
		t.Error("gradient image should produce non-zero hashes")
	}
}

func TestCompute_ScaledCopyIsSimilar(t *testing.T) {
	orig := createGradientImage(200, 160)
	small := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := range 80 {
		for x := range 100 {
			small.Set(x, y, orig.At(x*2, y*2))
		}
	}

	a, b := Compute(orig), Compute(small)
	if !Similar(a.DHash, b.DHash, 4) {
		t.Errorf("dHash of scaled copy differs in %d bits", HammingDistance(a.DHash, b.DHash))
	}
	if !Similar(a.PHash, b.PHash, 10) {
		t.Errorf("pHash of scaled copy differs in %d bits", HammingDistance(a.PHash, b.PHash))
	}
}

func TestCompute_MirroredGradientDiffers(t *testing.T) {
	img := createGradientImage(64, 64)
	mirrored := image.NewRGBA(img.Bounds())
	for y := range 64 {
		for x := range 64 {
			mirrored.Set(63-x, y, img.At(x, y))
		}
	}

	a, b := Compute(img), Compute(mirrored)
	if Similar(a.DHash, b.DHash, 4) {
		t.Errorf("mirrored image should have a different dHash, distance %d", HammingDistance(a.DHash, b.DHash))
	}
}

func TestHex_RoundTrip(t *testing.T) {
	h := Hashes{PHash: 0x0123456789abcdef, DHash: 0xf}
	if h.PHashHex() != "0123456789abcdef" {
		t.Errorf("unexpected pHash hex %s", h.PHashHex())
	}
	if h.DHashHex() != "000000000000000f" {
		t.Errorf("unexpected dHash hex %s", h.DHashHex())
	}
	v, err := ParseHex(h.PHashHex())
	if err != nil || v != h.PHash {
		t.Errorf("ParseHex(%s) = %x, %v", h.PHashHex(), v, err)
	}
	if _, err := ParseHex("xyz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestLuminance(t *testing.T) {
	img := createTestImage(10, 10, color.RGBA{255, 0, 0, 255})
	gray := luminance(img)

	if len(gray) != 10 || len(gray[0]) != 10 {
		t.Fatalf("expected 10x10 luma, got %dx%d", len(gray[0]), len(gray))
	}
	expectedLuma := 0.299 * 255
	if gray[0][0] < expectedLuma-1 || gray[0][0] > expectedLuma+1 {
		t.Errorf("red pixel luma should be ~%.2f, got %.2f", expectedLuma, gray[0][0])
	}
}

func TestDCT2_ConstantHasOnlyDC(t *testing.T) {
	m := make([][]float64, 8)
	for i := range m {
		m[i] = []float64{3, 3, 3, 3, 3, 3, 3, 3}
	}
	coeffs := dct2(m)
	if coeffs[0][0] == 0 {
		t.Error("expected a non-zero DC coefficient")
	}
	for u := range 8 {
		for v := range 8 {
			if (u != 0 || v != 0) && (coeffs[u][v] > 1e-9 || coeffs[u][v] < -1e-9) {
				t.Errorf("coefficient %d,%d = %g; want 0", u, v, coeffs[u][v])
			}
		}
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"odd count", []float64{1, 2, 3, 4, 5}, 3},
		{"even count", []float64{1, 2, 3, 4}, 2.5},
		{"single value", []float64{42}, 42},
		{"unsorted", []float64{5, 1, 3, 2, 4}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if result := median(tc.values); result != tc.expected {
				t.Errorf("median(%v) = %f; want %f", tc.values, result, tc.expected)
			}
		})
	}
}

func TestThumbnail(t *testing.T) {
	data, err := Thumbnail(createGradientImage(600, 300), 300)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("thumbnail is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 300 || b.Dy() != 150 {
		t.Errorf("expected 300x150 thumbnail, got %dx%d", b.Dx(), b.Dy())
	}
}

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			gray := uint8((x*x + y) * 255 / (width*width + height))
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}
