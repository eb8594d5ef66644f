package pileup

// Nucleotides in the order Counts holds them.
const Nucleotides = "ACGTN"

// Counts is the number of reads showing A, C, G, T and N at a position.
type Counts [5]int

func baseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	}
	return 4
}

// Coverage is the total number of bases at the position.
func (c Counts) Coverage() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Column is the profile of one reference position.
type Column struct {
	Counts Counts

	// Coverage is the total of Counts
	Coverage int

	// Consensus is the most frequent of A, C, G and T
	Consensus byte

	// Competing is the two most frequent of A, C, G and T, sorted
	Competing string

	// N2N1Ratio is the count of the second most frequent base over the most frequent
	N2N1Ratio float64
}

// Profile ranks the nucleotides of a position. Ties go to the base that
// comes first in Nucleotides.
func (c Counts) Profile() Column {
	first, second := -1, -1
	for i := 0; i < 4; i++ {
		switch {
		case first < 0 || c[i] > c[first]:
			first, second = i, first
		case second < 0 || c[i] > c[second]:
			second = i
		}
	}

	col := Column{
		Counts:    c,
		Coverage:  c.Coverage(),
		Consensus: Nucleotides[first],
	}

	if c[second] == 0 {
		col.Competing = string([]byte{Nucleotides[first], Nucleotides[first]})
	} else if first < second {
		col.Competing = string([]byte{Nucleotides[first], Nucleotides[second]})
	} else {
		col.Competing = string([]byte{Nucleotides[second], Nucleotides[first]})
	}

	if c[first] > 0 {
		col.N2N1Ratio = float64(c[second]) / float64(c[first])
	}
	return col
}

// Noise is the floor below which disagreement between reads is treated as
// sequencing error. The floor drops as coverage grows.
type Noise struct {
	// Base is the floor at infinite coverage
	Base float64

	// Scale is added to Base after dividing by the coverage
	Scale float64
}

// Floor is the smallest n2n1 ratio reported at a coverage.
func (n Noise) Floor(coverage int) float64 {
	if coverage <= 0 {
		return 1
	}
	return n.Base + n.Scale/float64(coverage)
}

// Variable reports whether the column shows variation above the noise floor.
func (n Noise) Variable(col Column) bool {
	return col.N2N1Ratio > 0 && col.N2N1Ratio >= n.Floor(col.Coverage)
}
