// Package controller drives one embedding session through its lifecycle. The lifecycle is an
// explicit state machine: Transition is a pure function from (state, input) to the next state,
// the effects to run and, on entering Terminal, the session Result. Session runs that machine
// on a single goroutine so inputs are applied one at a time.
package controller

import (
	"fmt"

	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
	"github.com/tansive/flowbridge/pkg/types"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateLoading
	StateActive
	StateTerminal
)

var stateNames = [...]string{"idle", "validating", "loading", "active", "terminal"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type InputKind int

const (
	InputEmbed InputKind = iota + 1
	InputValid
	InputInvalid
	InputBridge
	InputTimeout
	InputCancel
)

// Input drives the state machine. Event is set for InputBridge, Err for InputInvalid.
type Input struct {
	Kind  InputKind
	Event bridge.Event
	Err   apperrors.Error
}

// Effect is a set of side effects the runner performs after a transition.
type Effect uint8

const (
	EffectOpenBridge Effect = 1 << iota
	EffectArmWatchdog
	EffectDisarmWatchdog
	EffectTeardown
	EffectEmit
)

func (e Effect) Has(f Effect) bool { return e&f != 0 }

// Step is the outcome of applying one input.
type Step struct {
	Next    State
	Effects Effect
	Result  types.Result
}

const terminalEffects = EffectDisarmWatchdog | EffectTeardown | EffectEmit

// Transition computes the next step. Terminal is absorbing: every input applied to it yields
// Terminal with no effects. Inputs that mean nothing in the current state are ignored.
func Transition(s State, in Input) Step {
	stay := Step{Next: s}
	if s == StateTerminal {
		return stay
	}
	if in.Kind == InputCancel {
		return terminal(types.Closed())
	}

	switch s {
	case StateIdle:
		if in.Kind == InputEmbed {
			return Step{Next: StateValidating}
		}
	case StateValidating:
		switch in.Kind {
		case InputValid:
			return Step{Next: StateLoading, Effects: EffectOpenBridge | EffectArmWatchdog}
		case InputInvalid:
			err := in.Err
			if err == nil {
				err = taxonomy.ErrInvalidConfig
			}
			return terminal(types.Failure(taxonomy.FromAppError(err)))
		}
	case StateLoading, StateActive:
		switch in.Kind {
		case InputTimeout:
			if s == StateLoading {
				return terminal(types.Failure(taxonomy.FromAppError(taxonomy.ErrTimeout)))
			}
		case InputBridge:
			return onBridgeEvent(s, in.Event)
		}
	}
	return stay
}

func onBridgeEvent(s State, ev bridge.Event) Step {
	phase := taxonomy.PhaseLoading
	if s == StateActive {
		phase = taxonomy.PhaseActive
	}
	switch ev.Kind {
	case bridge.EventReady:
		if s == StateLoading {
			return Step{Next: StateActive, Effects: EffectDisarmWatchdog}
		}
		return Step{Next: s}
	case bridge.EventSuccess:
		return terminal(types.Success())
	case bridge.EventClosed:
		return terminal(types.Closed())
	case bridge.EventFailure, bridge.EventTransportError:
		return terminal(types.Failure(taxonomy.Classify(ev.Err(), phase)))
	}
	return Step{Next: s}
}

func terminal(r types.Result) Step {
	return Step{Next: StateTerminal, Effects: terminalEffects, Result: r}
}
