package dispatch

import "context"

// Caller identifies the process that issued a request.
type Caller struct {
	Pid uint32
	Uid uint32
	Gid uint32
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the identity bound to ctx, or the zero Caller.
//
// Handlers receive a context bound to their own request. Reading it after
// the handler has completed, or from a context that did not come from the
// dispatcher, yields whatever that context happens to carry.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
