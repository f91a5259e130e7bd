package tasks

import (
	"time"

	"framesched/internal/host"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseApproach
	PhaseAttack
	PhaseRetreat
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseApproach:
		return "approach"
	case PhaseAttack:
		return "attack"
	case PhaseRetreat:
		return "retreat"
	default:
		return "unknown"
	}
}

func (p Phase) next() Phase {
	return (p + 1) % 4
}

// AIState is the result threaded between OpponentAI runs.
type AIState struct {
	Phase     Phase
	Decisions int
	Since     time.Duration // scheduler time of the last transition
	Frame     uint64        // frame number of the last transition
}

// OpponentAI moves the opponent one step through
// idle -> approach -> attack -> retreat -> idle per run.
type OpponentAI struct{}

func (OpponentAI) Invoke(now time.Duration, f host.Frame, prev any) any {
	st, _ := prev.(AIState)
	st.Phase = st.Phase.next()
	st.Decisions++
	st.Since = now
	st.Frame = f.Number
	return st
}
