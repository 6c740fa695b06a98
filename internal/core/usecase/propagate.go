package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/prototype-classifier/internal/core/domain"
)

type PropagateUseCase struct {
	table domain.PropagationTable
}

// NewPropagateUseCase rejects tables that are not antisymmetric or whose
// diagonal is not self-annihilating.
func NewPropagateUseCase(table domain.PropagationTable) (*PropagateUseCase, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &PropagateUseCase{table: table}, nil
}

func (uc *PropagateUseCase) Table() domain.PropagationTable {
	return uc.table
}

func (uc *PropagateUseCase) Propagate(ctx context.Context, req domain.PropagationRequest) (*domain.Propagation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := propagate(&uc.table, req.StartSymbol, req.Chain, false)
	if err != nil {
		return nil, fmt.Errorf("propagate: %w", err)
	}
	return out, nil
}

// Narrative walks the chain from start and stops without error at the
// terminal scalar.
func (uc *PropagateUseCase) Narrative(start int, chain []int) (*domain.Propagation, error) {
	return propagate(&uc.table, start, chain, true)
}

func propagate(table *domain.PropagationTable, start int, chain []int, stopAtScalar bool) (*domain.Propagation, error) {
	state := domain.PropagationState{Sign: 1, Symbol: start}
	if start < 1 || start > domain.CategoryCount {
		return nil, &domain.TransitionError{
			Step:   0,
			From:   state,
			Input:  start,
			Reason: fmt.Sprintf("start symbol must be in 1..%d", domain.CategoryCount),
		}
	}

	out := &domain.Propagation{
		StartSymbol: start,
		Chain:       append([]int(nil), chain...),
		Trace:       make([]domain.PropagationState, 0, len(chain)+1),
	}
	out.Trace = append(out.Trace, state)

	for i, input := range chain {
		step := i + 1
		if input < 1 || input > domain.CategoryCount {
			return nil, &domain.TransitionError{
				Step:   step,
				From:   state,
				Input:  input,
				Reason: fmt.Sprintf("input symbol must be in 1..%d", domain.CategoryCount),
			}
		}
		if state.Symbol == domain.ScalarSymbol && stopAtScalar {
			out.Terminated = true
			break
		}
		entry, ok := table.Entry(state.Symbol, input)
		if !ok {
			return nil, &domain.TransitionError{
				Step:   step,
				From:   state,
				Input:  input,
				Reason: "no table entry for current symbol",
			}
		}
		state = domain.PropagationState{Sign: state.Sign * entry.Sign, Symbol: entry.Target}
		out.Trace = append(out.Trace, state)
	}

	out.FinalSign = state.Sign
	out.FinalSymbol = state.Symbol
	return out, nil
}
