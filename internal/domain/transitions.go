package domain

import "fmt"

// TransitionPolicy decides whether a stored transfer may move from one state to
// another. It is consulted before every state overwrite.
type TransitionPolicy interface {
	Allow(from, to TransferState) error
}

// AllowAllTransitions accepts every transition, including moves out of terminal
// states. This is the behaviour hub operators rely on today.
type AllowAllTransitions struct{}

func (AllowAllTransitions) Allow(from, to TransferState) error { return nil }

// ForwardOnlyTransitions accepts a move only along the declared lifecycle
// SUBMITTED → VALIDATION → PROCESSING → {COMPLETED | REJECTED | WITHDRAWN}.
// Re-applying the current state is accepted so replays stay harmless.
type ForwardOnlyTransitions struct{}

// ErrIllegalTransition is returned by a strict policy.
type ErrIllegalTransition struct {
	From TransferState
	To   TransferState
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transfer transition %s -> %s", e.From, e.To)
}

var forwardRank = map[TransferState]int{
	TransferStateSubmitted:  0,
	TransferStateValidation: 1,
	TransferStateProcessing: 2,
	TransferStateCompleted:  3,
	TransferStateRejected:   3,
	TransferStateWithdrawn:  3,
}

func (ForwardOnlyTransitions) Allow(from, to TransferState) error {
	if from == "" || from == to {
		return nil
	}
	fromRank, fromKnown := forwardRank[from]
	toRank, toKnown := forwardRank[to]
	if !fromKnown || !toKnown || from.IsTerminal() || toRank <= fromRank {
		return ErrIllegalTransition{From: from, To: to}
	}
	return nil
}

// TransitionPolicyByName resolves a configured policy name. Unknown names fall
// back to AllowAllTransitions.
func TransitionPolicyByName(name string) TransitionPolicy {
	if name == "forward" {
		return ForwardOnlyTransitions{}
	}
	return AllowAllTransitions{}
}
