// Package constraint implements the per-index upper/lower bound table
// consulted on every sigma-point clip and every corrected estimate (§3).
//
// Grounded on the original source's ConstrStateHigh/ConstrStateLow arrays,
// which store a sentinel `False` in a float array to mean "inactive" (§9
// design note). Here that becomes a proper Bound{Active, Value} pair per
// index, for both the observed-state slice and the parameter slice.
package constraint

import "gonum.org/v1/gonum/mat"

// Bound is one side (upper or lower) of a constraint on one augmented-state
// index.
type Bound struct {
	Active bool
	Value  float64
}

// Table holds the constraint set for an augmented state of nObs observed
// states followed by nPars parameters. It is set once at configuration time
// and is read-only thereafter (§5).
type Table struct {
	nObs   int
	nPars  int
	upper  []Bound
	lower  []Bound
}

// New creates an unconstrained table (every bound inactive) for an
// augmented state with nObs observed states and nPars parameters.
func New(nObs, nPars int) *Table {
	n := nObs + nPars
	return &Table{
		nObs:  nObs,
		nPars: nPars,
		upper: make([]Bound, n),
		lower: make([]Bound, n),
	}
}

// index maps a (isParam, localIndex) pair onto the flat augmented index.
func (t *Table) index(isParam bool, i int) int {
	if isParam {
		return t.nObs + i
	}
	return i
}

// SetStateUpper activates an upper bound on observed-state index i.
func (t *Table) SetStateUpper(i int, value float64) {
	t.upper[t.index(false, i)] = Bound{Active: true, Value: value}
}

// SetStateLower activates a lower bound on observed-state index i.
func (t *Table) SetStateLower(i int, value float64) {
	t.lower[t.index(false, i)] = Bound{Active: true, Value: value}
}

// SetParamUpper activates an upper bound on parameter index i.
func (t *Table) SetParamUpper(i int, value float64) {
	t.upper[t.index(true, i)] = Bound{Active: true, Value: value}
}

// SetParamLower activates a lower bound on parameter index i.
func (t *Table) SetParamLower(i int, value float64) {
	t.lower[t.index(true, i)] = Bound{Active: true, Value: value}
}

// Upper returns the upper bound for augmented index j.
func (t *Table) Upper(j int) Bound { return t.upper[j] }

// Lower returns the lower bound for augmented index j.
func (t *Table) Lower(j int) Bound { return t.lower[j] }

// Len returns the augmented dimension nObs+nPars this table was built for.
func (t *Table) Len() int { return t.nObs + t.nPars }

// Clamp applies every active bound to row of an augmented-state-shaped
// vector/row in place: row[j] is clamped to [lower[j].Value, upper[j].Value]
// wherever those bounds are active. Indices beyond Len() (e.g. the
// process/measurement-noise block of an augmented sigma point) are left
// untouched.
func (t *Table) Clamp(row []float64) {
	n := t.Len()
	for j := 0; j < len(row) && j < n; j++ {
		if b := t.upper[j]; b.Active && row[j] > b.Value {
			row[j] = b.Value
		}
		if b := t.lower[j]; b.Active && row[j] < b.Value {
			row[j] = b.Value
		}
	}
}

// ClampVec applies Clamp to a *mat.VecDense in place.
func (t *Table) ClampVec(v *mat.VecDense) {
	n := v.Len()
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = v.AtVec(i)
	}
	t.Clamp(raw)
	for i := 0; i < n; i++ {
		v.SetVec(i, raw[i])
	}
}

// Satisfies reports whether every active bound in the table holds for row.
// Used by tests to check the "constraint respect" invariant (§8).
func (t *Table) Satisfies(row []float64) bool {
	n := t.Len()
	for j := 0; j < len(row) && j < n; j++ {
		if b := t.upper[j]; b.Active && row[j] > b.Value {
			return false
		}
		if b := t.lower[j]; b.Active && row[j] < b.Value {
			return false
		}
	}
	return true
}
