// Package server implements the HTTP and WebSocket front end of chatrelay.
//
// It is the connection lifecycle driver for the chat room: WebSocketHandler
// upgrades requests, Hub joins each connection to the chat.Room and runs one
// read pump and one write pump per client, and the read pump triggers the
// room's disconnect sequence when the peer goes away. Client implements
// registry.Sink, so the room's fan-out lands in each client's bounded
// outbound queue.
//
// The implementation is organized into files for runtime configuration,
// origin checks, clients, the hub, routing and HTTP handlers.
package server
