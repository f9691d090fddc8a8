// Package abortctx gives the swap core a child-controller tree on top of
// context.Context, mirroring the nested AbortController pattern the spec
// describes (one swap-level controller, per-attempt children that abort
// independently without tearing down the swap). Go has no built-in
// "create a child abort signal that can also be aborted on its own", so
// this is a thin wrapper over context.WithCancelCause.
package abortctx

import (
	"context"
	"errors"
)

// ErrAborted is the cause recorded when Abort is called with no reason.
var ErrAborted = errors.New("aborted")

// Controller is one node in the abort tree. Aborting a controller cancels
// its context and every child controller's context, but leaves parent and
// sibling controllers untouched.
type Controller struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// New creates a root controller bound to parent.
func New(parent context.Context) *Controller {
	ctx, cancel := context.WithCancelCause(parent)
	return &Controller{ctx: ctx, cancel: cancel}
}

// Context returns the controller's context. It is done once the
// controller, or any of its ancestors, is aborted.
func (c *Controller) Context() context.Context { return c.ctx }

// Child creates a new controller scoped under c. Aborting the child never
// aborts c; aborting c aborts every descendant.
func (c *Controller) Child() *Controller {
	return New(c.ctx)
}

// Abort cancels c and all of its descendants with reason as the cause. A
// nil reason records ErrAborted.
func (c *Controller) Abort(reason error) {
	if reason == nil {
		reason = ErrAborted
	}
	c.cancel(reason)
}

// Aborted reports whether c (or an ancestor) has been aborted.
func (c *Controller) Aborted() bool {
	return c.ctx.Err() != nil
}

// Cause returns the error passed to Abort, or context.Canceled /
// context.DeadlineExceeded for cancellations that didn't originate from
// Abort. Returns nil if the controller is still live.
func (c *Controller) Cause() error {
	return context.Cause(c.ctx)
}
