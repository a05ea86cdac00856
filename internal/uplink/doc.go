// Package uplink is the agent side of the control protocol.
//
// A Conn dials the control node, generates a fresh key pair for every
// connection attempt, sends its public key and waits for the server's. Once
// the server key arrives the Conn is Ready and Send encrypts outbound text
// with it.
//
// # State Machine
//
//	Connecting  --connected-->   Handshaking
//	Handshaking --server key-->  Ready
//	Handshaking, Ready --EOF-->  Connecting (immediately)
//	any --transport error-->     Retrying
//	Retrying    --timer-->       Connecting
//
// Socket and timer activity is turned into events processed one at a time
// by the dispatcher in Run. Every attempt carries a generation number and
// events from superseded attempts are ignored.
//
// A "ping" from the server is answered with "pong" automatically; all other
// content goes to the message handler.
package uplink
