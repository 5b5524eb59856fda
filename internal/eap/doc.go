// Package eap implements the Extensible Authentication Protocol (RFC 3748)
// as a pair of sans-I/O state machines: AuthSession for the Authenticator
// and PeerSession for the Peer. The package performs no I/O of its own — callers
// feed inbound bytes to Receive, drive retransmission with Timeout, and
// transmit whatever Response bytes a step returns.
package eap
