package features

import (
	"fmt"
	"maps"
	"slices"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/kozaktomas/orchid/internal/constants"
)

// colorspaces lists the supported colorspaces. Each name spells its
// channels in order.
var colorspaces = []string{"bgr", "hsv", "lab"}

// toColorspace returns the channels of an 8-bit RGB pixel in colorspace,
// each scaled to [0, 1].
func toColorspace(colorspace string, r, g, b uint8) [3]float64 {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	switch colorspace {
	case "hsv":
		h, s, v := c.Hsv()
		return [3]float64{h / 360, s, v}
	case "lab":
		l, a, bb := c.Lab()
		return [3]float64{clamp01(l), clamp01((a + 1) / 2), clamp01((bb + 1) / 2)}
	default:
		return [3]float64{c.B, c.G, c.R}
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// checkHistograms validates a colorspace to per-channel bin count map.
func checkHistograms(hists map[string][]int) error {
	for cs, bins := range hists {
		if !slices.Contains(colorspaces, cs) {
			return fmt.Errorf("unknown colorspace '%s'", cs)
		}
		if len(bins) > len(cs) {
			return fmt.Errorf("colorspace '%s' has %d channels, got %d bin counts", cs, len(cs), len(bins))
		}
		for _, n := range bins {
			if n < 1 {
				return fmt.Errorf("colorspace '%s' has a bin count of %d", cs, n)
			}
		}
	}
	return nil
}

// histogramColumns appends the column names of a colorspace histogram set
// to header, each prefixed with prefix.
func histogramColumns(header []string, prefix string, hists map[string][]int) []string {
	for _, cs := range slices.Sorted(maps.Keys(hists)) {
		for ch, n := range hists[cs] {
			for i := 1; i <= n; i++ {
				header = append(header, fmt.Sprintf("%s%c:%d", prefix, cs[ch], i))
			}
		}
	}
	return header
}

// histogram accumulates per-channel bin counts for a set of colorspaces.
type histogram struct {
	hists  map[string][]int
	order  []string
	counts map[string][][]float64
	total  int
}

func newHistogram(hists map[string][]int) *histogram {
	h := &histogram{hists: hists, order: slices.Sorted(maps.Keys(hists)), counts: map[string][][]float64{}}
	for cs, bins := range hists {
		h.counts[cs] = make([][]float64, len(bins))
		for ch, n := range bins {
			h.counts[cs][ch] = make([]float64, n)
		}
	}
	return h
}

func (h *histogram) add(r, g, b uint8) {
	h.total++
	for _, cs := range h.order {
		v := toColorspace(cs, r, g, b)
		for ch, n := range h.hists[cs] {
			bin := min(int(v[ch]*float64(n)), n-1)
			h.counts[cs][ch][bin]++
		}
	}
}

// appendTo appends the normalized histograms to vec in column order.
func (h *histogram) appendTo(vec []float64) []float64 {
	for _, cs := range h.order {
		for _, bins := range h.counts[cs] {
			for _, c := range bins {
				if h.total > 0 {
					c /= float64(h.total)
				}
				vec = append(vec, c)
			}
		}
	}
	return vec
}

func colorHistograms(s *sample, hists map[string][]int) []float64 {
	h := newHistogram(hists)
	for y := range s.h {
		for x := range s.w {
			if s.fg[y*s.w+x] {
				h.add(s.rgb(x, y))
			}
		}
	}
	return h.appendTo(nil)
}

func bgrMeansBins(bins int) int {
	if bins <= 0 {
		return constants.DefaultBGRMeansBins
	}
	return bins
}

func bgrMeansColumns(header []string, bins int) []string {
	for i := 1; i <= bins; i++ {
		for _, axis := range []string{"HOR", "VER"} {
			for _, ch := range "BGR" {
				header = append(header, fmt.Sprintf("BGR_MN:%d.%s.%c", i, axis, ch))
			}
		}
	}
	return header
}

// bgrMeans splits the image in bins horizontal bands and bins vertical
// bands and returns the mean blue, green and red of the foreground in each.
func bgrMeans(s *sample, bins int) []float64 {
	vec := make([]float64, 0, bins*6)
	for i := range bins {
		y0, y1 := i*s.h/bins, (i+1)*s.h/bins
		vec = append(vec, meanBGR(s, 0, y0, s.w, y1)...)

		x0, x1 := i*s.w/bins, (i+1)*s.w/bins
		vec = append(vec, meanBGR(s, x0, 0, x1, s.h)...)
	}
	return vec
}

func meanBGR(s *sample, x0, y0, x1, y1 int) []float64 {
	var sb, sg, sr float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if !s.fg[y*s.w+x] {
				continue
			}
			r, g, b := s.rgb(x, y)
			sb += float64(b)
			sg += float64(g)
			sr += float64(r)
			n++
		}
	}
	if n == 0 {
		return []float64{0, 0, 0}
	}
	d := float64(n) * 255
	return []float64{sb / d, sg / d, sr / d}
}
