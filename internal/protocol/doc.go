// Package protocol defines the JSON envelope exchanged between chat clients and
// the relay.
//
// Every frame is a single envelope:
//
//	{
//	  "message_type": "NewMessage" | "UserList" | "UsernameChange" | "System",
//	  "message":  {"message": "...", "author": "...", "created_at": "..."} | null,
//	  "users":    ["...", ...] | null,
//	  "username": "..." | null
//	}
//
// Exactly one of message, users and username is populated and it must match
// message_type. Field names are matched exactly; a key that differs from a
// known field only in case is rejected. Decode rejects anything else with a
// *ParseError.
package protocol
