package peer

import "fmt"

// ErrNotFound reports that group/key is not present on any node a call
// reached. Grounded on the teacher's transport/errors.go ErrNotFound,
// but constructed at a narrower point: this module's Client.Get already
// separates "no value" (the found bool) from "the call itself failed"
// (err) at the interface boundary, so a genuine miss never needs to
// travel as an error between Client and Group. ErrNotFound exists for
// the one place that needs an error value to carry a 404's message —
// the HTTP gateway, which has no bool-shaped response to hand back.
type ErrNotFound struct {
	Group string
	Key   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("peer: %q/%q not found", e.Group, e.Key)
}

func (e *ErrNotFound) Is(target error) bool {
	_, ok := target.(*ErrNotFound)
	return ok
}

// ErrRemoteCall wraps a failure to complete an RPC against a peer — a
// dial failure, a dropped connection, or the peer's handler itself
// returning an error — as opposed to the caller's own context being
// canceled, which RPCClient returns unwrapped so callers can still tell
// "I gave up" apart from "the peer failed". Grounded on the teacher's
// transport/errors.go ErrRemoteCall, narrowed to one peer since this
// module's group.Set/Del broadcast to the key's single owning peer
// rather than the teacher's fan-out to every peer (see MultiError's
// absence, noted in DESIGN.md).
type ErrRemoteCall struct {
	Peer string
	Err  error
}

func (e *ErrRemoteCall) Error() string {
	return fmt.Sprintf("peer: calling %s: %v", e.Peer, e.Err)
}

func (e *ErrRemoteCall) Unwrap() error { return e.Err }

func (e *ErrRemoteCall) Is(target error) bool {
	_, ok := target.(*ErrRemoteCall)
	return ok
}
