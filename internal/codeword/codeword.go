// Package codeword encodes class names as network target vectors and
// decodes network outputs back into ranked class names.
//
// Every class gets a codeword as wide as the number of classes: the
// negative value everywhere except at the class's position in sorted
// order, which holds the positive value.
package codeword

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrLengthMismatch is returned when an output vector and the codewords
// have different widths.
var ErrLengthMismatch = errors.New("codeword length mismatch")

// Set maps class names to codewords.
type Set struct {
	classes []string
	words   map[string][]float64
	pos     float64
}

// Ranked is a class selected from a network output.
type Ranked struct {
	Class string  `json:"class"`
	Value float64 `json:"value"` // network output at the class position
}

// New builds codewords for classes with the given negative and positive
// values. Duplicate class names are collapsed.
func New(classes []string, neg, pos float64) *Set {
	sorted := slices.Clone(classes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	words := make(map[string][]float64, len(sorted))
	for i, class := range sorted {
		cw := make([]float64, len(sorted))
		for j := range cw {
			cw[j] = neg
		}
		cw[i] = pos
		words[class] = cw
	}
	return &Set{classes: sorted, words: words, pos: pos}
}

// Codewords returns the codeword of every class.
func Codewords(classes []string, neg, pos float64) map[string][]float64 {
	return New(classes, neg, pos).words
}

// Len returns the number of classes, which is also the codeword width.
func (s *Set) Len() int {
	return len(s.classes)
}

// Classes returns the class names in codeword order.
func (s *Set) Classes() []string {
	return slices.Clone(s.classes)
}

// Codeword returns the codeword of class.
func (s *Set) Codeword(class string) ([]float64, bool) {
	cw, ok := s.words[class]
	if !ok {
		return nil, false
	}
	return slices.Clone(cw), true
}

// Classify returns the classes whose positive position in output is within
// maxError (squared) of the positive value, highest output first. Ties are
// ordered by class name, descending.
func (s *Set) Classify(output []float64, maxError float64) ([]Ranked, error) {
	if len(output) != len(s.classes) {
		return nil, fmt.Errorf("%w: %d codewords, output of length %d", ErrLengthMismatch, len(s.classes), len(output))
	}

	var ranked []Ranked
	for _, class := range s.classes {
		for i, code := range s.words[class] {
			if code != s.pos {
				continue
			}
			diff := code - output[i]
			if diff*diff < maxError {
				ranked = append(ranked, Ranked{Class: class, Value: output[i]})
			}
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Class > ranked[j].Class
	})
	return ranked, nil
}

// Names returns the class names of ranked results in order.
func Names(ranked []Ranked) []string {
	names := make([]string, len(ranked))
	for i, r := range ranked {
		names[i] = r.Class
	}
	return names
}

// Join renders ranked class names as a comma separated list.
func Join(ranked []Ranked) string {
	return strings.Join(Names(ranked), ", ")
}
