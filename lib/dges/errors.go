package dges

import "errors"

// ErrPageNotFound is the server's authoritative answer that a page does
// not exist. Fetch adapters wrap it so callers can tell "nothing there"
// apart from transient fetch failures, which are any other error.
var ErrPageNotFound = errors.New("dges: page does not exist")
