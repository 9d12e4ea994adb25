// Package sdlkit provides device utilities for self-driving labs,
// centered on a newline-framed file transfer protocol over TCP.
//
// The protocol moves exactly one file per connection: the sender
// transmits the file name and the decimal byte size as newline-framed
// header lines, then the raw payload. The receiver reads the two
// header lines and then exactly the declared number of body bytes.
//
// Subpackages hold the building blocks: wire (framing codec), socket
// (connection lifecycle), transfer (chunked engine and role
// orchestrators), retry (the shared fixed-delay policy), logger (the
// default timestamped file logger), config (TOML configuration), iot
// (MQTT device client), and approval (Slack approval polling). This
// package is the convenience facade over socket and transfer.
//
// Example:
//
//	opts := sdlkit.NewOptions()
//	err := sdlkit.SendFile(ctx, "10.0.0.7", 9000, "report.txt", payload, opts)
package sdlkit
