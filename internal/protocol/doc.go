// Package protocol defines the JSON documents exchanged with the host.
//
// Every document carries an integer messageID. Outbound and inbound
// messages use separate ID spaces: outbound 0 asks for the current state,
// inbound 0 announces a new script-less object. Inbound documents decode into
// a closed set of Answer variants; an ID this package does not know becomes
// *Unrecognized instead of an error.
package protocol
