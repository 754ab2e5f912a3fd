// Package matrix provides small gonum/mat helpers shared across the
// filter's components: pretty-printing for log output and block-diagonal
// assembly for the augmented sigma-point composite factor.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Format returns matrix formatter for printing matrices
func Format(m mat.Matrix) fmt.Formatter {
	return mat.Formatted(m, mat.Prefix(""), mat.Squeeze())
}

// BlockDiag assembles a block-diagonal matrix with blocks on the diagonal
// in the order given and zeros elsewhere. Used by the sigma-point generator
// to build the effective composite square-root factor [√P,√Q,√R] for the
// augmented UKF variant (§4.2).
func BlockDiag(blocks ...*mat.Dense) *mat.Dense {
	n := 0
	for _, b := range blocks {
		r, c := b.Dims()
		if r != c {
			panic("matrix: BlockDiag requires square blocks")
		}
		n += r
	}

	out := mat.NewDense(n, n, nil)
	offset := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		if r == 0 {
			continue
		}
		out.Slice(offset, offset+r, offset, offset+r).(*mat.Dense).Copy(b)
		offset += r
	}

	return out
}
