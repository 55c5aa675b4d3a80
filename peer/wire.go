package peer

// The RPC argument/reply pairs below are shared with package rpcserver,
// which registers a net/rpc service built on exactly these types — the
// peer client and the server the client talks to agree on the same Go
// types rather than a separately specified wire schema, since spec.md
// places the RPC wire format itself out of scope and only constrains
// the three verbs' request/response contracts.

// GetArgs is the request for the Get verb.
type GetArgs struct {
	Group string
	Key   string
}

// GetReply is the response for the Get verb. Found is false for both a
// genuine cache miss and a failed deserialization of Value — both are
// "no value", never a transport fault.
type GetReply struct {
	Value Value
	Found bool
}

// SetArgs is the request for the Set verb.
type SetArgs struct {
	Group string
	Key   string
	Value Value
}

// SetReply carries no data; its presence is the acknowledgement.
type SetReply struct{}

// DeleteArgs is the request for the Delete verb.
type DeleteArgs struct {
	Group string
	Key   string
}

// DeleteReply carries no data; its presence is the acknowledgement.
type DeleteReply struct{}
