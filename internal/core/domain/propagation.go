package domain

import (
	"errors"
	"fmt"
)

// ScalarSymbol is the terminal real unit. No table row starts from it.
const ScalarSymbol = 0

// TableEntry is the signed target of composing two symbols.
type TableEntry struct {
	Sign   int `json:"sign"`
	Target int `json:"target"`
}

// PropagationTable holds T[i][j] for symbols i, j in 1..7 at position [i-1][j-1].
type PropagationTable [CategoryCount][CategoryCount]TableEntry

type PropagationState struct {
	Sign   int `json:"sign"`
	Symbol int `json:"symbol"`
}

type PropagationRequest struct {
	StartSymbol int   `json:"startSymbol"`
	Chain       []int `json:"chain"`
}

type Propagation struct {
	StartSymbol int                `json:"startSymbol"`
	Chain       []int              `json:"chain"`
	FinalSign   int                `json:"finalSign"`
	FinalSymbol int                `json:"finalSymbol"`
	Trace       []PropagationState `json:"trace"`
	Terminated  bool               `json:"terminated,omitempty"`
}

// Entry looks up T[from][input] for one-based symbols.
func (t *PropagationTable) Entry(from, input int) (TableEntry, bool) {
	if from < 1 || from > CategoryCount || input < 1 || input > CategoryCount {
		return TableEntry{}, false
	}
	return t[from-1][input-1], true
}

// Validate checks sign and target ranges, self-annihilating diagonal entries
// and antisymmetry of every off-diagonal pair. All violations are reported.
func (t *PropagationTable) Validate() error {
	var errs []error
	for i := 1; i <= CategoryCount; i++ {
		for j := 1; j <= CategoryCount; j++ {
			e := t[i-1][j-1]
			if e.Sign != 1 && e.Sign != -1 {
				errs = append(errs, fmt.Errorf("T[%d][%d] sign %d is not +1 or -1", i, j, e.Sign))
			}
			if e.Target < ScalarSymbol || e.Target > CategoryCount {
				errs = append(errs, fmt.Errorf("T[%d][%d] target %d out of range 0..%d", i, j, e.Target, CategoryCount))
			}
			if i == j {
				if e.Sign != -1 || e.Target != ScalarSymbol {
					errs = append(errs, fmt.Errorf("T[%d][%d] = (%+d, %d), want (-1, 0)", i, j, e.Sign, e.Target))
				}
				continue
			}
			if j < i {
				continue
			}
			mirror := t[j-1][i-1]
			if e.Target != mirror.Target {
				errs = append(errs, fmt.Errorf("T[%d][%d] target %d differs from T[%d][%d] target %d", i, j, e.Target, j, i, mirror.Target))
			}
			if e.Sign != -mirror.Sign {
				errs = append(errs, fmt.Errorf("T[%d][%d] sign %+d is not opposite of T[%d][%d] sign %+d", i, j, e.Sign, j, i, mirror.Sign))
			}
		}
	}
	if len(errs) > 0 {
		return WrapError(ErrConfiguration, "propagation table", errors.Join(errs...))
	}
	return nil
}

// fanoTriples lists the oriented lines (a, b, c) with e_a*e_b = e_c.
var fanoTriples = [CategoryCount][3]int{
	{1, 2, 3},
	{1, 4, 5},
	{1, 7, 6},
	{2, 4, 6},
	{2, 5, 7},
	{3, 4, 7},
	{3, 6, 5},
}

// DefaultPropagationTable builds the signed table from the seven oriented
// triples: every cyclic rotation of a triple maps to +target and the reversed
// order to -target.
func DefaultPropagationTable() PropagationTable {
	var t PropagationTable
	for i := range CategoryCount {
		t[i][i] = TableEntry{Sign: -1, Target: ScalarSymbol}
	}
	for _, tr := range fanoTriples {
		for r := range 3 {
			a, b, c := tr[r], tr[(r+1)%3], tr[(r+2)%3]
			t[a-1][b-1] = TableEntry{Sign: 1, Target: c}
			t[b-1][a-1] = TableEntry{Sign: -1, Target: c}
		}
	}
	return t
}
