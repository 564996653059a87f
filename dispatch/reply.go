package dispatch

import (
	"sync/atomic"
	"time"

	"fusebind/errno"
)

// Request states. Transitions only move forward.
const (
	statePending int32 = iota
	stateInvoked
	stateCompleted
	stateReplied
)

// call tracks one dispatched request from invocation to reply.
type call struct {
	d     *Dispatcher
	req   *Request
	start time.Time
	state atomic.Int32
	out   chan Response
}

// complete records the handler's completion. Only the first completion
// is translated and sent; later ones are reported and dropped.
func (c *call) complete(resp Response, payload bool) {
	if !c.state.CompareAndSwap(stateInvoked, stateCompleted) {
		c.d.violation(c.req, ViolationDoubleCompletion,
			"completion ignored in state %s", stateName(c.state.Load()))
		return
	}
	c.reply(c.d.translate(c.req, resp, payload))
}

// abort replies with the generic failure if no completion arrived yet.
func (c *call) abort() bool {
	if !c.state.CompareAndSwap(stateInvoked, stateCompleted) {
		return false
	}
	c.reply(Response{Status: int(errno.Generic)})
	return true
}

func (c *call) reply(resp Response) {
	c.d.finish(c, resp)
	c.state.Store(stateReplied)
	c.out <- resp
}

func stateName(s int32) string {
	switch s {
	case statePending:
		return "pending"
	case stateInvoked:
		return "invoked"
	case stateCompleted:
		return "completed"
	case stateReplied:
		return "replied"
	}
	return "unknown"
}

// Reply is the single-use completion handed to a handler. T is the
// payload type of the operation.
//
// Exactly one of OK, Status or Fail should be called. Extra calls are
// ignored and logged.
type Reply[T any] struct {
	c    *call
	conv func(T) Response
}

// Done is the reply of operations without a payload.
type Done = Reply[struct{}]

func newReply[T any](c *call, conv func(T) Response) *Reply[T] {
	return &Reply[T]{c: c, conv: conv}
}

// OK completes successfully with v. For read and write v is the byte
// count.
func (r *Reply[T]) OK(v T) {
	r.c.complete(r.conv(v), true)
}

// Status completes with a numeric status: zero or positive for success
// (the byte count for read and write), a negative errno.Code for failure.
func (r *Reply[T]) Status(n int) {
	r.c.complete(Response{Status: n}, false)
}

// Fail completes with err translated by errno.FromError. A nil err is
// success.
func (r *Reply[T]) Fail(err error) {
	r.Status(int(errno.FromError(err)))
}

func noPayload(struct{}) Response { return Response{} }

func attrPayload(a *Attr) Response {
	if a == nil {
		return Response{}
	}
	cp := *a
	return Response{Attr: &cp}
}

func statfsPayload(s *StatfsRecord) Response {
	if s == nil {
		return Response{}
	}
	cp := *s
	return Response{Statfs: &cp}
}

func namesPayload(names []string) Response {
	return Response{Names: append([]string{}, names...)}
}

func linkPayload(target string) Response { return Response{Link: target} }

func fdPayload(fd FD) Response { return Response{FD: fd} }

func dataPayload(b []byte) Response { return Response{Data: b} }

func countPayload(n int) Response { return Response{Status: n} }
