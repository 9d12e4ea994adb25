// Package transfer implements the chunked transfer engine and the
// per-role orchestrators for the newline-framed file protocol.
//
// One Sender or Receiver drives exactly one file over an established
// session, sequencing the phases
//
//	Connected -> NameExchanged -> SizeExchanged -> BodyTransferred -> Done
//
// Any phase failure aborts the machine in place; there is no built-in
// reconnect or resume, because partial-header state cannot be safely
// resumed mid-frame. Retry, if wanted, is applied by the caller around
// the whole connect-through-transfer sequence (see package retry).
//
// Example:
//
//	recv := transfer.NewReceiver(session)
//	recv.OnProgress(func(received uint64) {
//	    fmt.Printf("received %d bytes\n", received)
//	})
//	name, body, err := recv.Receive()
package transfer
