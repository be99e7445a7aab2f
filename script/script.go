// Package script runs sandboxed Lua chunks as node lifecycles.
//
// A script sees two globals: input, the node's prep result, and params, the
// node's effective params. It either defines a function exec(input, params)
// whose return value is the exec result, or returns a value from the chunk
// itself. A script may also define route(result) returning the action to
// take after exec.
package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/agentstation/pocketflow"
)

// ErrScript wraps every error raised while loading or running Lua code.
var ErrScript = errors.New("script: lua error")

// Script is a Lua chunk that Compile has checked for syntax errors. Every
// run parses the source again in a fresh interpreter, so runs share no state
// and may execute concurrently.
type Script struct {
	Name   string
	Source string
}

// Compile checks that source parses and returns a Script for it.
func Compile(name, source string) (*Script, error) {
	l := lua.NewState()
	if err := lua.LoadString(l, source); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, name, err)
	}
	return &Script{Name: name, Source: source}, nil
}

// Exec runs the script against input and returns its result.
func (s *Script) Exec(ctx context.Context, input any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l, err := s.load(input, pocketflow.ParamsFrom(ctx))
	if err != nil {
		return nil, err
	}

	l.Global("exec")
	if l.TypeOf(-1) == lua.TypeFunction {
		pushValue(l, input)
		pushValue(l, pocketflow.ParamsFrom(ctx))
		if err := l.ProtectedCall(2, 1, 0); err != nil {
			return nil, fmt.Errorf("%w: %s: exec: %v", ErrScript, s.Name, err)
		}
		return pullValue(l, -1), nil
	}
	l.Pop(1)

	if l.Top() > 0 {
		return pullValue(l, -1), nil
	}
	return nil, nil
}

// Route runs the script's route function on result. Without one it returns
// nil, which takes the default edge. The chunk is run again first, with
// input bound to result.
func (s *Script) Route(ctx context.Context, result any) (any, error) {
	if !strings.Contains(s.Source, "route") {
		return nil, nil
	}

	l, err := s.load(result, pocketflow.ParamsFrom(ctx))
	if err != nil {
		return nil, err
	}

	l.Global("route")
	if l.TypeOf(-1) != lua.TypeFunction {
		return nil, nil
	}
	pushValue(l, result)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %s: route: %v", ErrScript, s.Name, err)
	}
	return pullValue(l, -1), nil
}

// load runs the chunk in a fresh sandbox, leaving any value it returns on the
// stack.
func (s *Script) load(input any, params pocketflow.Params) (*lua.State, error) {
	l := newSandbox()

	pushValue(l, input)
	l.SetGlobal("input")
	pushValue(l, params)
	l.SetGlobal("params")

	if err := lua.LoadString(l, s.Source); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, s.Name, err)
	}
	if err := l.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScript, s.Name, err)
	}
	return l, nil
}

// Steps returns a lifecycle whose exec runs the script. prep supplies the
// script's input and post receives its result; either may be nil. When post
// is nil the script's route function picks the action.
func (s *Script) Steps(prep pocketflow.PrepFunc, post pocketflow.PostFunc) pocketflow.Steps {
	if post == nil {
		post = func(ctx context.Context, _ *pocketflow.Shared, _, execResult any) (any, error) {
			return s.Route(ctx, execResult)
		}
	}
	return pocketflow.Steps{
		Prep: prep,
		Exec: s.Exec,
		Post: post,
	}
}
