package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the envelope's type tag.
type MessageType string

// Envelope type tags.
const (
	NewMessage     MessageType = "NewMessage"
	UserList       MessageType = "UserList"
	UsernameChange MessageType = "UsernameChange"
	System         MessageType = "System"
)

// SystemAuthor is the reserved author of server-originated notices.
const SystemAuthor = "system"

// Valid reports whether t is one of the four known tags.
func (t MessageType) Valid() bool {
	switch t {
	case NewMessage, UserList, UsernameChange, System:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects unknown tags.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mt := MessageType(s)
	if !mt.Valid() {
		return fmt.Errorf("unknown message_type %q", s)
	}
	*t = mt
	return nil
}

// ChatMessage is a single chat line.
type ChatMessage struct {
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt Timestamp `json:"created_at"`
}

// Envelope is the tagged union sent over the wire. Only the payload field that
// matches Type is set.
type Envelope struct {
	Type     MessageType  `json:"message_type"`
	Message  *ChatMessage `json:"message"`
	Users    []string     `json:"users"`
	Username *string      `json:"username"`
}

// NewChat wraps a chat line.
func NewChat(body, author string, at time.Time) Envelope {
	return FromChat(ChatMessage{Message: body, Author: author, CreatedAt: At(at)})
}

// FromChat wraps an existing ChatMessage.
func FromChat(msg ChatMessage) Envelope {
	return Envelope{Type: NewMessage, Message: &msg}
}

// NewUserList wraps the current display names. A nil slice is sent as [].
func NewUserList(names []string) Envelope {
	if names == nil {
		names = []string{}
	}
	return Envelope{Type: UserList, Users: names}
}

// NewUsername wraps a username, either a client's change request or the
// server pushing a connection its current name.
func NewUsername(name string) Envelope {
	return Envelope{Type: UsernameChange, Username: &name}
}

// NewSystem builds a server notice authored by SystemAuthor.
func NewSystem(body string, at time.Time) Envelope {
	msg := ChatMessage{Message: body, Author: SystemAuthor, CreatedAt: At(at)}
	return Envelope{Type: System, Message: &msg}
}

// Validate checks that exactly the payload matching Type is populated.
func (e Envelope) Validate() error {
	if !e.Type.Valid() {
		return parseErrorf("unknown message_type %q", string(e.Type))
	}

	hasMessage := e.Message != nil
	hasUsers := e.Users != nil
	hasUsername := e.Username != nil

	var want string
	var ok bool
	switch e.Type {
	case NewMessage, System:
		want, ok = "message", hasMessage && !hasUsers && !hasUsername
	case UserList:
		want, ok = "users", hasUsers && !hasMessage && !hasUsername
	case UsernameChange:
		want, ok = "username", hasUsername && !hasMessage && !hasUsers
	}
	if !ok {
		return parseErrorf("%s envelope must carry exactly the %q payload", e.Type, want)
	}
	return nil
}

// Encode serialises e. Encoding never fails for envelope values.
func (e Envelope) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		// Every field is a string, a string slice or a Timestamp.
		panic(fmt.Sprintf("protocol: encode envelope: %v", err))
	}
	return data
}

// String returns the encoded envelope as text.
func (e Envelope) String() string {
	return string(e.Encode())
}
