// Package socket manages the connection lifecycle for one file transfer.
//
// A Session owns a single stream connection carrying exactly one file.
// The connect phase runs under a bounded timeout (DefaultConnectTimeout);
// once the connection is established the timeout is cleared and
// steady-state reads block, since the declared size bounds the body read.
// An optional per-phase read timeout can be set so a stalled peer cannot
// hold a worker indefinitely.
//
// The package never retries a failed connect. Callers that want retry
// wrap the whole connect-through-transfer sequence in a retry.Policy.
//
// Example:
//
//	session, err := socket.Dial("10.0.0.7", 9000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
package socket
