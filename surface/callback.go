package surface

import "deedles.dev/wlsurf/internal/xslices"

// Token identifies a frame callback within its queue.
type Token uint32

// FrameCallback is one requested frame completion notice.
type FrameCallback struct {
	token   Token
	res     CallbackResource
	canSend bool
}

func (cb *FrameCallback) Token() Token {
	return cb.token
}

// Eligible reports whether the callback has been armed by the start
// of a frame and will be sent by the next Fire.
func (cb *FrameCallback) Eligible() bool {
	return cb.canSend
}

// FrameCallbackQueue holds a surface's frame callbacks in two ordered
// sequences: pending callbacks, requested since the last commit, and
// armed callbacks, which belong to a committed frame and wait for the
// render loop to present it.
type FrameCallbackQueue struct {
	pending []*FrameCallback
	armed   []*FrameCallback
	next    Token
}

// Request appends a new callback for res to the pending sequence.
func (q *FrameCallbackQueue) Request(res CallbackResource) Token {
	q.next++
	q.pending = append(q.pending, &FrameCallback{token: q.next, res: res})
	return q.next
}

// PromoteOnCommit moves every pending callback, in order, to the end
// of the armed sequence.
func (q *FrameCallbackQueue) PromoteOnCommit() {
	q.armed = append(q.armed, q.pending...)
	q.pending = nil
}

// Arm marks every armed callback eligible to be sent.
func (q *FrameCallbackQueue) Arm() {
	for _, cb := range q.armed {
		cb.canSend = true
	}
}

// Fire sends the completion event to every eligible callback and
// removes them. Callbacks that are not yet eligible stay queued. It
// returns the number of callbacks sent.
func (q *FrameCallbackQueue) Fire(time uint32) int {
	var sent int
	q.armed = xslices.Filter(q.armed, func(cb *FrameCallback) bool {
		if !cb.canSend {
			return true
		}
		cb.res.Done(time)
		sent++
		return false
	})
	return sent
}

// Remove drops the callback with the given token without touching its
// resource, for when the client has already destroyed it.
func (q *FrameCallbackQueue) Remove(token Token) bool {
	match := func(cb *FrameCallback) bool { return cb.token != token }

	n := len(q.pending) + len(q.armed)
	q.pending = xslices.Filter(q.pending, match)
	q.armed = xslices.Filter(q.armed, match)
	return len(q.pending)+len(q.armed) < n
}

// DestroyAll destroys every callback's resource without sending
// anything and empties the queue.
func (q *FrameCallbackQueue) DestroyAll() {
	for _, cb := range q.pending {
		cb.res.Destroy()
	}
	for _, cb := range q.armed {
		cb.res.Destroy()
	}
	q.pending = nil
	q.armed = nil
}

// Pending returns the tokens of the pending callbacks in order.
func (q *FrameCallbackQueue) Pending() []Token {
	return tokens(q.pending)
}

// Armed returns the tokens of the armed callbacks in order.
func (q *FrameCallbackQueue) Armed() []Token {
	return tokens(q.armed)
}

func tokens(cbs []*FrameCallback) []Token {
	t := make([]Token, 0, len(cbs))
	for _, cb := range cbs {
		t = append(t, cb.token)
	}
	return t
}
