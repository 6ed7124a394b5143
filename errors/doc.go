/*
Package errors provides semantic error types for the chainquery library.

Every failure the query engine can raise maps to a sentinel that can be checked
with the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrArity          = errors.New("too many arguments")
	    ErrNotIterable    = errors.New("entry is not iterable")
	    ErrEncoding       = errors.New("encoding failed")
	    ErrDecode         = errors.New("decode failed")
	    ErrTransport      = errors.New("transport error")
	    ErrMethodNotFound = errors.New("rpc method not found")
	)

Usage:

	value, err := entry.Get(ctx, accountID)
	if err != nil {
	    if errors.IsArity(err) {
	        // programming error: wrong number of map keys
	    }
	    if errors.IsTransport(err) {
	        // node or connection failure, retry policy belongs to the transport
	    }
	    return nil, err
	}

Single-key accessor failures are wrapped in a KeyError naming the storage key;
errors.Is and errors.As still reach the original transport or codec error.
*/
package errors
