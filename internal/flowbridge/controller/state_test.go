package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/config"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
	"github.com/tansive/flowbridge/pkg/types"
)

func bridgeInput(ev bridge.Event) Input {
	return Input{Kind: InputBridge, Event: ev}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		input   Input
		next    State
		effects Effect
		result  types.ResultKind
		code    types.ErrorCode
		subCode string
	}{
		{name: "embed", state: StateIdle, input: Input{Kind: InputEmbed}, next: StateValidating},
		{name: "valid config opens bridge", state: StateValidating, input: Input{Kind: InputValid}, next: StateLoading,
			effects: EffectOpenBridge | EffectArmWatchdog},
		{name: "invalid config", state: StateValidating, input: Input{Kind: InputInvalid, Err: config.ErrAppIssuerRequired},
			next: StateTerminal, effects: terminalEffects, result: types.ResultFailure, code: types.CodeInvalidConfig},
		{name: "ready", state: StateLoading, input: bridgeInput(bridge.Event{Kind: bridge.EventReady}), next: StateActive,
			effects: EffectDisarmWatchdog},
		{name: "duplicate ready", state: StateActive, input: bridgeInput(bridge.Event{Kind: bridge.EventReady}), next: StateActive},
		{name: "load timeout", state: StateLoading, input: Input{Kind: InputTimeout}, next: StateTerminal,
			effects: terminalEffects, result: types.ResultFailure, code: types.CodeTimeout},
		{name: "timeout after ready is ignored", state: StateActive, input: Input{Kind: InputTimeout}, next: StateActive},
		{name: "success", state: StateActive, input: bridgeInput(bridge.Event{Kind: bridge.EventSuccess}), next: StateTerminal,
			effects: terminalEffects, result: types.ResultSuccess},
		{name: "success before ready", state: StateLoading, input: bridgeInput(bridge.Event{Kind: bridge.EventSuccess}),
			next: StateTerminal, effects: terminalEffects, result: types.ResultSuccess},
		{name: "user closed", state: StateActive, input: bridgeInput(bridge.Event{Kind: bridge.EventClosed}), next: StateTerminal,
			effects: terminalEffects, result: types.ResultClosed},
		{name: "camera failure", state: StateActive,
			input: bridgeInput(bridge.Event{Kind: bridge.EventFailure, Failure: taxonomy.RawFailure{Kind: taxonomy.KindCameraPermission}}),
			next:  StateTerminal, effects: terminalEffects, result: types.ResultFailure, code: types.CodeCameraPermission},
		{name: "transport error while loading", state: StateLoading, input: bridgeInput(bridge.TransportError(bridge.ErrFlowEnded)),
			next: StateTerminal, effects: terminalEffects, result: types.ResultFailure, code: types.CodeInitialization},
		{name: "transport error while active", state: StateActive, input: bridgeInput(bridge.TransportError(bridge.ErrFlowEnded)),
			next: StateTerminal, effects: terminalEffects, result: types.ResultFailure, code: types.CodeBridge},
		{name: "cancel while idle", state: StateIdle, input: Input{Kind: InputCancel}, next: StateTerminal,
			effects: terminalEffects, result: types.ResultClosed},
		{name: "cancel while loading", state: StateLoading, input: Input{Kind: InputCancel}, next: StateTerminal,
			effects: terminalEffects, result: types.ResultClosed},
		{name: "cancel while active", state: StateActive, input: Input{Kind: InputCancel}, next: StateTerminal,
			effects: terminalEffects, result: types.ResultClosed},
		{name: "bridge event before loading", state: StateValidating, input: bridgeInput(bridge.Event{Kind: bridge.EventSuccess}),
			next: StateValidating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := Transition(tt.state, tt.input)
			assert.Equal(t, tt.next, step.Next)
			assert.Equal(t, tt.effects, step.Effects)
			assert.Equal(t, tt.result, step.Result.Kind())
			if tt.code != "" {
				e, ok := step.Result.Err()
				if assert.True(t, ok) {
					assert.Equal(t, tt.code, e.Code)
					assert.Equal(t, tt.subCode, e.SubCode.String())
				}
			}
		})
	}
}

func TestTerminalIsAbsorbing(t *testing.T) {
	inputs := []Input{
		{Kind: InputEmbed},
		{Kind: InputValid},
		{Kind: InputInvalid, Err: config.ErrAccessTokenRequired},
		{Kind: InputTimeout},
		{Kind: InputCancel},
		bridgeInput(bridge.Event{Kind: bridge.EventReady}),
		bridgeInput(bridge.Event{Kind: bridge.EventSuccess}),
		bridgeInput(bridge.Event{Kind: bridge.EventFailure}),
	}
	for _, in := range inputs {
		step := Transition(StateTerminal, in)
		assert.Equal(t, StateTerminal, step.Next)
		assert.Zero(t, step.Effects)
		assert.False(t, step.Result.IsValid())
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "State(9)", State(9).String())
}
