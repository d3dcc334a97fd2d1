// Package vsm is a point-to-point transport for named, typed signals
// exchanged between a server and exactly one client over TCP.
//
// Each signal travels as a single text line:
//
//	<name>=<value>\n
//
// Booleans are rendered as True or False, integers in decimal, floats in
// fixed-point with six fractional digits and strings verbatim.  There is
// no escaping, so names never contain '=', spaces or newlines, and string
// values never contain '=' or newlines.
//
// A [Connection] owns the listening socket and at most one client
// session.  The listener survives any number of Accept / Close cycles and
// is only released by Teardown.  All formatting and line storage happens
// in a scratch buffer supplied by the caller; the package never allocates
// or grows it.
//
// The package does no locking and starts no long-lived goroutines.  When
// several goroutines share a Connection they must serialise access with
// their own lock and use [WaitReadable] to block without holding it:
//
//	mu.Lock()
//	d := conn.ClientDescriptor()
//	mu.Unlock()
//	if err := vsm.WaitReadable(ctx, d); err != nil {
//		return err
//	}
//	mu.Lock()
//	sig, err := conn.ReceiveContext(ctx)
//	mu.Unlock()
//
// ReceiveContext keeps the read after the wait cancellable: a peer that
// stops halfway through a line cannot pin the lock past ctx.
// The snapshot is data-race free but not linearizable: the socket may be
// closed between the snapshot and the wait, in which case the wait fails.
//
// Failures are returned as [*Error] values classified by [Kind].  A peer
// that closes its side cleanly is reported as [io.EOF], which callers
// treat as normal termination rather than a fault.
package vsm
