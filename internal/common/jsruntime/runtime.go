// Package jsruntime runs embedded flows written in JavaScript. A flow is a single function
// source, function(start, bridge) { ... }, executed in a fresh goja VM per run. It receives
// the decoded start directive and a bridge object through which it reports readiness and its
// outcome. A Flow satisfies the embedded surface contract: Run consumes the directive channel
// and posts event envelopes back.
package jsruntime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/tansive/flowbridge/internal/common/apperrors"
)

// Options for controlling execution
type Options struct {
	Logger zerolog.Logger
	// ProtocolVersion is stamped on the ready envelope when set.
	ProtocolVersion string
}

// Flow is a compiled flow function.
type Flow struct {
	name string
	code string
	opts Options
}

// New creates a Flow from a JS function source string. The source is compiled once here so
// syntax errors surface before any session uses it.
func New(name, jsCode string, opts Options) (*Flow, apperrors.Error) {
	vm := goja.New()
	if _, err := compile(vm, jsCode); err != nil {
		return nil, err
	}
	return &Flow{name: name, code: jsCode, opts: opts}, nil
}

func (f *Flow) Name() string { return f.name }

func compile(vm *goja.Runtime, jsCode string) (goja.Callable, apperrors.Error) {
	v, err := vm.RunString(fmt.Sprintf("(%s)", jsCode))
	if err != nil {
		return nil, ErrInvalidJSFunction.Err(err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, ErrInvalidJSFunction.Msg("script is not a function")
	}
	return fn, nil
}

// Run waits for the start directive, then calls the flow function with it. It returns when the
// function returns, throws or is interrupted because ctx ended.
func (f *Flow) Run(ctx context.Context, directives <-chan []byte, post func(msg []byte)) error {
	var directive []byte
	select {
	case d, ok := <-directives:
		if !ok {
			return ErrInvalidDirective.Msg("directive channel closed")
		}
		directive = d
	case <-ctx.Done():
		return ctx.Err()
	}

	// New VM per run to isolate memory
	vm := goja.New()
	logger := f.opts.Logger.With().Str("flow", f.name).Logger()
	bindConsole(vm, logger)
	fn, aerr := compile(vm, f.code)
	if aerr != nil {
		return ErrJSExecutionError.Err(aerr)
	}
	start := toGojaValue(vm, directive)
	bridgeObj := f.bindBridge(ctx, vm, post)

	done := make(chan struct{})
	var callErr error
	go func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("panic: %v", r)
			}
			close(done)
		}()
		_, callErr = fn(goja.Undefined(), start, bridgeObj)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		vm.Interrupt(ctx.Err())
		<-done
		return ctx.Err()
	}

	if callErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if callErr != nil {
		switch e := callErr.(type) {
		case *goja.InterruptedError:
			return ErrJSInterrupted.Err(e)
		case *goja.Exception:
			return ErrJSRuntimeError.Msg(e.Value().String())
		}
		return ErrJSExecutionError.Err(callErr)
	}
	return nil
}

// bindBridge exposes the bridge object to the flow:
//
//	bridge.ready()             the flow has loaded and is interactive
//	bridge.success()           the flow completed
//	bridge.fail(error)         the flow failed; error is the raw failure object
//	bridge.close()             the user dismissed the flow
//	bridge.post(message)       posts an arbitrary message envelope
//	bridge.sleep(ms)           blocks the flow, returning false if the session ended
func (f *Flow) bindBridge(ctx context.Context, vm *goja.Runtime, post func([]byte)) *goja.Object {
	var mu sync.Mutex
	send := func(v goja.Value) {
		msg, err := exportJSON(v)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		mu.Lock()
		defer mu.Unlock()
		post(msg)
	}
	event := func(kind string, extra map[string]any) goja.Value {
		m := map[string]any{"event": kind}
		for k, v := range extra {
			m[k] = v
		}
		return vm.ToValue(m)
	}

	obj := vm.NewObject()
	_ = obj.Set("ready", func(goja.FunctionCall) goja.Value {
		var extra map[string]any
		if f.opts.ProtocolVersion != "" {
			extra = map[string]any{"protocolVersion": f.opts.ProtocolVersion}
		}
		send(event("ready", extra))
		return goja.Undefined()
	})
	_ = obj.Set("success", func(goja.FunctionCall) goja.Value {
		send(event("result:success", nil))
		return goja.Undefined()
	})
	_ = obj.Set("close", func(goja.FunctionCall) goja.Value {
		send(event("result:closed", nil))
		return goja.Undefined()
	})
	_ = obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		failure := call.Argument(0).Export()
		if s, ok := failure.(string); ok {
			failure = map[string]any{"message": s}
		}
		send(event("result:failure", map[string]any{"error": failure}))
		return goja.Undefined()
	})
	_ = obj.Set("post", func(call goja.FunctionCall) goja.Value {
		send(call.Argument(0))
		return goja.Undefined()
	})
	_ = obj.Set("sleep", func(call goja.FunctionCall) goja.Value {
		d := time.Duration(call.Argument(0).ToInteger()) * time.Millisecond
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return vm.ToValue(true)
		case <-ctx.Done():
			return vm.ToValue(false)
		}
	})
	return obj
}
