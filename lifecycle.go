package pocketflow

import "context"

// PrepFunc reads what the node needs from shared state.
type PrepFunc func(ctx context.Context, shared *Shared) (prepResult any, err error)

// ExecFunc performs the main computation. It may fail and be retried, so it
// should not touch shared state.
type ExecFunc func(ctx context.Context, prepResult any) (execResult any, err error)

// FallbackFunc runs once after the last failed exec attempt. Returning a
// value recovers the node; returning an error makes the failure terminal.
type FallbackFunc func(ctx context.Context, prepResult any, execErr error) (execResult any, err error)

// PostFunc writes results back to shared state and chooses the next action.
type PostFunc func(ctx context.Context, shared *Shared, prepResult, execResult any) (action any, err error)

// Steps groups the lifecycle functions for a node.
// All fields are optional - a nil field uses the default: Prep and Exec
// return nil, Post returns nil (the default action) and Fallback re-raises.
type Steps struct {
	// Prep reads from shared state.
	Prep PrepFunc

	// Exec performs the main processing logic, retried per the node policy.
	Exec ExecFunc

	// Fallback handles the last Exec error.
	Fallback FallbackFunc

	// Post writes to shared state and picks the next action.
	Post PostFunc
}

// Lifecycle is the capability set of a synchronous node. Embed Base to
// inherit defaults and override only the phases you need.
type Lifecycle interface {
	Prep(ctx context.Context, shared *Shared) (any, error)
	Exec(ctx context.Context, prepResult any) (any, error)
	Post(ctx context.Context, shared *Shared, prepResult, execResult any) (any, error)
}

// Fallbacker is implemented by lifecycles that can recover from exhausted
// retries.
type Fallbacker interface {
	Fallback(ctx context.Context, prepResult any, execErr error) (any, error)
}

// AsyncLifecycle is the capability set of an async node. Every phase may
// suspend until ctx is done. Embed AsyncBase for defaults.
type AsyncLifecycle interface {
	PrepAsync(ctx context.Context, shared *Shared) (any, error)
	ExecAsync(ctx context.Context, prepResult any) (any, error)
	PostAsync(ctx context.Context, shared *Shared, prepResult, execResult any) (any, error)
}

// AsyncFallbacker is the async counterpart of Fallbacker.
type AsyncFallbacker interface {
	FallbackAsync(ctx context.Context, prepResult any, execErr error) (any, error)
}

// StepsOf turns a Lifecycle implementation into Steps.
func StepsOf(l Lifecycle) Steps {
	s := Steps{
		Prep: l.Prep,
		Exec: l.Exec,
		Post: l.Post,
	}
	if f, ok := l.(Fallbacker); ok {
		s.Fallback = f.Fallback
	}
	return s
}

// AsyncStepsOf turns an AsyncLifecycle implementation into Steps.
func AsyncStepsOf(l AsyncLifecycle) Steps {
	s := Steps{
		Prep: l.PrepAsync,
		Exec: l.ExecAsync,
		Post: l.PostAsync,
	}
	if f, ok := l.(AsyncFallbacker); ok {
		s.Fallback = f.FallbackAsync
	}
	return s
}

// Base provides the default synchronous lifecycle.
type Base struct{}

// Prep returns nil.
func (Base) Prep(context.Context, *Shared) (any, error) { return nil, nil }

// Exec returns nil.
func (Base) Exec(context.Context, any) (any, error) { return nil, nil }

// Fallback re-raises execErr.
func (Base) Fallback(_ context.Context, _ any, execErr error) (any, error) { return nil, execErr }

// Post returns nil, which routes along the default edge.
func (Base) Post(context.Context, *Shared, any, any) (any, error) { return nil, nil }

// AsyncBase provides the default async lifecycle.
type AsyncBase struct{}

// PrepAsync returns nil.
func (AsyncBase) PrepAsync(context.Context, *Shared) (any, error) { return nil, nil }

// ExecAsync returns nil.
func (AsyncBase) ExecAsync(context.Context, any) (any, error) { return nil, nil }

// FallbackAsync re-raises execErr.
func (AsyncBase) FallbackAsync(_ context.Context, _ any, execErr error) (any, error) {
	return nil, execErr
}

// PostAsync returns nil, which routes along the default edge.
func (AsyncBase) PostAsync(context.Context, *Shared, any, any) (any, error) { return nil, nil }

// WithDefaults returns s with every nil field replaced by its default.
func (s Steps) WithDefaults() Steps {
	if s.Prep == nil {
		s.Prep = Base{}.Prep
	}
	if s.Exec == nil {
		s.Exec = Base{}.Exec
	}
	if s.Fallback == nil {
		s.Fallback = Base{}.Fallback
	}
	if s.Post == nil {
		s.Post = Base{}.Post
	}
	return s
}
