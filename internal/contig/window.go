package contig

import (
	"gonum.org/v1/gonum/stat"
)

// Window is a half-open [Start, End) interval on a contig.
type Window struct {
	Start int
	End   int
}

// Windows breaks a contig into consecutive windows of splitLength bases.
// The remainder is folded into the last window, so no window is shorter
// than splitLength unless the contig itself is.
func Windows(length, splitLength int) []Window {
	if length <= 0 {
		return nil
	}
	if splitLength <= 0 {
		return []Window{{0, length}}
	}

	n := length / splitLength
	if n == 0 {
		n = 1
	}

	windows := make([]Window, n)
	for i := range windows {
		windows[i] = Window{Start: i * splitLength, End: (i + 1) * splitLength}
	}
	windows[n-1].End = length
	return windows
}

// SetAbundance sets the abundance of every contig and split: its mean
// coverage over the mean of all contigs' mean coverage.
func SetAbundance(contigs []*Contig) {
	if len(contigs) == 0 {
		return
	}

	means := make([]float64, len(contigs))
	for i, c := range contigs {
		means[i] = c.Coverage.Mean
	}
	overall := stat.Mean(means, nil)

	for _, c := range contigs {
		c.Abundance = ratio(c.Coverage.Mean, overall)
		for _, s := range c.Splits {
			s.Abundance = ratio(s.Coverage.Mean, overall)
		}
	}
}

func ratio(x, y float64) float64 {
	if y == 0 {
		return 0
	}
	return x / y
}
