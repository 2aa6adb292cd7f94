package protocol_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chatrelay/internal/protocol"
)

var testTime = time.Date(2024, time.March, 9, 17, 4, 5, 123456789, time.UTC)

func TestRoundTripAllVariants(t *testing.T) {
	cases := map[string]protocol.Envelope{
		"chat":           protocol.NewChat("hi", "user #1", testTime),
		"chat empty":     protocol.NewChat("", "", testTime),
		"user list":      protocol.NewUserList([]string{"user #1", "bob"}),
		"empty list":     protocol.NewUserList(nil),
		"username":       protocol.NewUsername("bob"),
		"empty username": protocol.NewUsername(""),
		"system":         protocol.NewSystem("bob join the chat", testTime),
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := protocol.Decode(env.Encode())
			require.NoError(t, err)
			assert.Equal(t, env, decoded)
		})
	}
}

func TestEncodeWireShape(t *testing.T) {
	got := protocol.NewChat("hi", "user #1", testTime).String()
	want := `{"message_type":"NewMessage","message":{"message":"hi","author":"user #1",` +
		`"created_at":"2024-03-09T17:04:05.123456789"},"users":null,"username":null}`
	assert.JSONEq(t, want, got)

	got = protocol.NewUserList(nil).String()
	assert.JSONEq(t, `{"message_type":"UserList","message":null,"users":[],"username":null}`, got)
}

func TestSystemNoticeAuthor(t *testing.T) {
	env := protocol.NewSystem("user #2 left the chat", testTime)
	require.NotNil(t, env.Message)
	assert.Equal(t, protocol.System, env.Type)
	assert.Equal(t, protocol.SystemAuthor, env.Message.Author)
}

func TestDecodeClientFrame(t *testing.T) {
	raw := `{"message_type":"NewMessage","message":{"message":"hi","author":"","created_at":"2024-03-09T17:04:05"}}`
	env, err := protocol.DecodeString(raw)
	require.NoError(t, err)
	require.NotNil(t, env.Message)
	assert.Equal(t, "hi", env.Message.Message)
	assert.Empty(t, env.Message.Author)
	assert.True(t, env.Message.CreatedAt.Equal(protocol.At(time.Date(2024, 3, 9, 17, 4, 5, 0, time.UTC))))
}

func TestDecodeRFC3339Timestamp(t *testing.T) {
	raw := `{"message_type":"NewMessage","message":{"message":"x","author":"a","created_at":"2024-03-09T19:04:05+02:00"}}`
	env, err := protocol.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, env.Message.CreatedAt.Location())
	assert.Equal(t, 17, env.Message.CreatedAt.Hour())
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"plain text":        "hello everyone",
		"invalid json":      `{"message_type":`,
		"unknown tag":       `{"message_type":"Shout","username":"x"}`,
		"missing tag":       `{"username":"x"}`,
		"null tag":          `{"message_type":null,"username":"x"}`,
		"missing message":   `{"message_type":"NewMessage"}`,
		"missing users":     `{"message_type":"UserList"}`,
		"missing username":  `{"message_type":"UsernameChange","username":null}`,
		"cross populated":   `{"message_type":"UsernameChange","username":"x","users":[]}`,
		"system with users": `{"message_type":"System","message":{"message":"m","author":"system","created_at":"2024-03-09T17:04:05"},"users":["a"]}`,
		"bad timestamp":     `{"message_type":"NewMessage","message":{"message":"m","author":"a","created_at":"yesterday"}}`,
		"wrong field type":  `{"message_type":"UserList","users":"everyone"}`,
		"upper-case keys":   `{"MESSAGE_TYPE":"UsernameChange","Username":"x"}`,
		"mixed-case key":    `{"message_type":"UsernameChange","UserName":"x"}`,
		"nested case key":   `{"message_type":"NewMessage","message":{"Message":"m","author":"a","created_at":"2024-03-09T17:04:05"}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := protocol.DecodeString(raw)
			require.Error(t, err)
			var perr *protocol.ParseError
			assert.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
		})
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	_, err := protocol.Decode([]byte{'{', 0xff, 0xfe, '}'})
	var perr *protocol.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "UTF-8")
}

func TestUserListRequestIgnoresContent(t *testing.T) {
	env, err := protocol.DecodeString(`{"message_type":"UserList","users":[]}`)
	require.NoError(t, err)
	assert.Equal(t, protocol.UserList, env.Type)
	assert.Empty(t, env.Users)
}

func TestTimestampOutsideFourDigitYearsRoundTrips(t *testing.T) {
	cases := map[string]struct {
		at   time.Time
		want time.Time
	}{
		"year 10000": {
			at:   time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC),
		},
		"negative year": {
			at:   time.Date(-1, time.June, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		"last instant": {
			at:   time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC),
			want: time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := protocol.NewChat("hi", "a", tc.at)
			assert.True(t, env.Message.CreatedAt.Time.Equal(tc.want), "got %v", env.Message.CreatedAt)

			decoded, err := protocol.Decode(env.Encode())
			require.NoError(t, err)
			assert.True(t, env.Message.CreatedAt.Equal(decoded.Message.CreatedAt))
		})
	}
}

func TestTimestampLiteralOutOfRangeStillEncodes(t *testing.T) {
	env := protocol.FromChat(protocol.ChatMessage{
		Message:   "hi",
		CreatedAt: protocol.Timestamp{Time: time.Date(12000, time.March, 1, 0, 0, 0, 0, time.UTC)},
	})

	decoded, err := protocol.Decode(env.Encode())
	require.NoError(t, err)
	assert.Equal(t, 9999, decoded.Message.CreatedAt.Year())
}

func TestDecodeIgnoresUnrelatedKeys(t *testing.T) {
	env, err := protocol.DecodeString(`{"message_type":"UsernameChange","username":"bob","client":"web"}`)
	require.NoError(t, err)
	assert.Equal(t, "bob", *env.Username)
}
