package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
)

func outlineK(k int) int {
	if k <= 0 {
		return constants.DefaultOutlineK
	}
	return k
}

func outlineColumns(header []string, k int) []string {
	for i := 1; i <= k; i++ {
		header = append(header, fmt.Sprintf("OUTLINE:%d.X", i), fmt.Sprintf("OUTLINE:%d.Y", i))
	}
	return header
}

// outline samples k evenly spaced rows and columns of the mask. For each
// index it returns the foreground width of the row relative to the image
// width, followed by the foreground height of the column relative to the
// image height.
func outline(s *sample, k int) []float64 {
	vec := make([]float64, 0, 2*k)
	for i := 1; i <= k; i++ {
		y := i * s.h / (k + 1)
		x := i * s.w / (k + 1)
		vec = append(vec, rowExtent(s, y), colExtent(s, x))
	}
	return vec
}

func rowExtent(s *sample, y int) float64 {
	first, last := -1, -1
	for x := range s.w {
		if s.inside(x, y) {
			if first < 0 {
				first = x
			}
			last = x
		}
	}
	if first < 0 {
		return 0
	}
	return float64(last-first+1) / float64(s.w)
}

func colExtent(s *sample, x int) float64 {
	first, last := -1, -1
	for y := range s.h {
		if s.inside(x, y) {
			if first < 0 {
				first = y
			}
			last = y
		}
	}
	if first < 0 {
		return 0
	}
	return float64(last-first+1) / float64(s.h)
}

// shape360 holds the resolved shape_360 parameters.
type shape360 struct {
	step   int
	meanSD bool
	hists  map[string][]int
}

func newShape360(cfg *config.Shape360Config) shape360 {
	sh := shape360{step: cfg.Step}
	if sh.step <= 0 {
		sh.step = constants.DefaultShape360Step
	}
	if cfg.OutputFunctions == nil {
		sh.meanSD = true
		return sh
	}
	sh.meanSD = cfg.OutputFunctions.MeanSD != nil
	sh.hists = cfg.OutputFunctions.ColorHistograms
	return sh
}

func (sh shape360) angles() []int {
	var a []int
	for i := 0; i < 360; i += sh.step {
		a = append(a, i)
	}
	return a
}

// columns lists color histogram columns before mean and standard deviation
// columns, matching the lexical order of the output function names.
func (sh shape360) columns(header []string) []string {
	if len(sh.hists) > 0 {
		for _, a := range sh.angles() {
			header = histogramColumns(header, fmt.Sprintf("360:%d.", a), sh.hists)
		}
	}
	if sh.meanSD {
		for _, a := range sh.angles() {
			header = append(header, fmt.Sprintf("360:%d.MN", a), fmt.Sprintf("360:%d.SD", a))
		}
	}
	return header
}

type ray struct {
	boundaries []float64 // distances from the centroid where the ray leaves the foreground
	hist       *histogram
}

// extract casts a ray from the foreground centroid for every angle.
// Boundary distances are scaled by the largest distance found on any ray.
func (sh shape360) extract(s *sample) []float64 {
	cx, cy := centroid(s)
	angles := sh.angles()
	rays := make([]ray, len(angles))

	var longest float64
	for i, a := range angles {
		rays[i] = castRay(s, cx, cy, float64(a), sh.hists)
		for _, d := range rays[i].boundaries {
			longest = math.Max(longest, d)
		}
	}

	var vec []float64
	if len(sh.hists) > 0 {
		for _, r := range rays {
			vec = r.hist.appendTo(vec)
		}
	}
	if sh.meanSD {
		for _, r := range rays {
			if len(r.boundaries) == 0 || longest == 0 {
				vec = append(vec, 0, 0)
				continue
			}
			ds := make([]float64, len(r.boundaries))
			for j, d := range r.boundaries {
				ds[j] = d / longest
			}
			mean, sd := stat.PopMeanStdDev(ds, nil)
			vec = append(vec, mean, sd)
		}
	}
	return vec
}

func centroid(s *sample) (float64, float64) {
	var sx, sy float64
	n := 0
	for y := range s.h {
		for x := range s.w {
			if s.fg[y*s.w+x] {
				sx += float64(x)
				sy += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return float64(s.w) / 2, float64(s.h) / 2
	}
	return sx / float64(n), sy / float64(n)
}

// castRay walks from (cx, cy) in one pixel steps. Angles are counter
// clockwise with 0 pointing right.
func castRay(s *sample, cx, cy, angle float64, hists map[string][]int) ray {
	rad := angle * math.Pi / 180
	dx, dy := math.Cos(rad), -math.Sin(rad)
	r := ray{}
	if len(hists) > 0 {
		r.hist = newHistogram(hists)
	}

	prevInside := false
	for t := 0.0; ; t++ {
		x := int(math.Round(cx + t*dx))
		y := int(math.Round(cy + t*dy))
		if x < 0 || y < 0 || x >= s.w || y >= s.h {
			if prevInside {
				r.boundaries = append(r.boundaries, t)
			}
			break
		}
		in := s.fg[y*s.w+x]
		if prevInside && !in {
			r.boundaries = append(r.boundaries, t)
		}
		if in && r.hist != nil {
			r.hist.add(s.rgb(x, y))
		}
		prevInside = in
	}
	return r
}
