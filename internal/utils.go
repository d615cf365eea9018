package internal

import (
	"context"
	"fmt"
)

// CtxKey is a context key bound to the type of the value it stores, so that lookups never need a type assertion at
// the call site.
type CtxKey[T any] struct {
	name string
}

// NewCtxKey creates a new typed context key
func NewCtxKey[T any](name string) CtxKey[T] {
	return CtxKey[T]{name: name}
}

// String implements fmt.Stringer for debugging
func (k CtxKey[T]) String() string {
	return fmt.Sprintf("ctxkey[%T](%s)", *new(T), k.name)
}

// WithValue returns a copy of ctx carrying value under key
func WithValue[T any](ctx context.Context, key CtxKey[T], value T) context.Context {
	return context.WithValue(ctx, key, value)
}

// Value returns the value stored under key, if any
func Value[T any](ctx context.Context, key CtxKey[T]) (T, bool) {
	value, ok := ctx.Value(key).(T)
	return value, ok
}
