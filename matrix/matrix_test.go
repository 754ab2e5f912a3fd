package matrix

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestFormat(t *testing.T) {
	assert := assert.New(t)

	out := `⎡1.2  3.4⎤
⎣4.5  6.7⎦`
	data := []float64{1.2, 3.4, 4.5, 6.7}
	m := mat.NewDense(2, 2, data)
	assert.NotNil(m)

	format := Format(m)
	tstOut := fmt.Sprintf("%v", format)
	assert.Equal(out, tstOut)
}

func TestBlockDiag(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(1, 1, []float64{2})
	b := mat.NewDense(2, 2, []float64{1, 0, 1, 1})

	got := BlockDiag(a, b)
	want := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 1, 0,
		0, 1, 1,
	})

	assert.True(mat.Equal(want, got))
	assert.Panics(func() { BlockDiag(mat.NewDense(1, 2, nil)) })
}
