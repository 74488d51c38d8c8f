package jsruntime

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
)

func bindConsole(vm *goja.Runtime, logger zerolog.Logger) {
	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		logger.Info().Str("source", "flow").Msg(joinArgs(call))
		return goja.Undefined()
	})
	_ = console.Set("debug", func(call goja.FunctionCall) goja.Value {
		logger.Debug().Str("source", "flow").Msg(joinArgs(call))
		return goja.Undefined()
	})

	// console.error(...)
	_ = console.Set("error", func(call goja.FunctionCall) goja.Value {
		logger.Error().Str("source", "flow").Msg(joinArgs(call))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)
}

func joinArgs(call goja.FunctionCall) string {
	args := make([]any, len(call.Arguments))
	for i, arg := range call.Arguments {
		args[i] = arg.Export()
	}
	return fmt.Sprintf("%v", args)
}
