// Package discovery finds brokers on the local network with mDNS/DNS-SD.
//
// Brokers advertise the _shvbroker._tcp service. TXT records are optional:
//
//	scheme  tcp (default), ssl, ws or wss
//	path    websocket path
//	name    broker name
//
// The agent browses only when no broker host is configured.
package discovery
