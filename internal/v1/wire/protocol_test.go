package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_WireShapes(t *testing.T) {
	tests := []struct {
		name string
		data string
		want ClientRequest
	}{
		{
			name: "join",
			data: `{"Join":{"room":"rust","name":"alice"}}`,
			want: JoinRequest{Room: "rust", Name: "alice"},
		},
		{
			name: "leave",
			data: `{"Leave":{"room":"rust"}}`,
			want: LeaveRequest{Room: "rust"},
		},
		{
			name: "message",
			data: `{"Message":{"room":"rust","text":"hi"}}`,
			want: MessageRequest{Room: "rust", Text: "hi"},
		},
		{
			name: "room list bare string",
			data: `"RoomList"`,
			want: RoomListRequest{},
		},
		{
			name: "room list object spelling",
			data: `{"RoomList":null}`,
			want: RoomListRequest{},
		},
		{
			name: "members",
			data: `{"Members":{"room":"rust"}}`,
			want: MembersRequest{Room: "rust"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeRequest([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
		})
	}
}

func TestDecodeRequest_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown tag", `{"Shout":{"room":"rust"}}`},
		{"unknown bare string", `"Shout"`},
		{"two variants", `{"Join":{"room":"a","name":"b"},"Leave":{"room":"a"}}`},
		{"empty object", `{}`},
		{"not json", `{`},
		{"array", `[1,2,3]`},
		{"malformed payload", `{"Join":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEncodeEvent_WireShapes(t *testing.T) {
	tests := []struct {
		name string
		ev   ServerEvent
		want string
	}{
		{
			name: "user joined",
			ev:   UserJoined{Room: "rust", Name: "alice"},
			want: `{"UserJoined":{"room":"rust","name":"alice"}}`,
		},
		{
			name: "user left",
			ev:   UserLeft{Room: "rust", Name: "alice"},
			want: `{"UserLeft":{"room":"rust","name":"alice"}}`,
		},
		{
			name: "new message",
			ev:   NewMessage{Room: "rust", Name: "alice", Text: "hi", TS: 1234567890123},
			want: `{"NewMessage":{"room":"rust","name":"alice","text":"hi","ts":1234567890123}}`,
		},
		{
			name: "room list",
			ev:   RoomList{Rooms: []string{"rust", "go"}},
			want: `{"RoomList":{"rooms":["rust","go"]}}`,
		},
		{
			name: "member list",
			ev:   MemberList{Room: "rust", Members: []string{"alice", "bob"}},
			want: `{"MemberList":{"room":"rust","members":["alice","bob"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncodeEvent(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(frame))
			assert.True(t, json.Valid(frame))
		})
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []ServerEvent{
		UserJoined{Room: "a", Name: "alice"},
		UserLeft{Room: "a", Name: "alice"},
		NewMessage{Room: "a", Name: "alice", Text: "hello world", TS: 42},
		NewMessage{Room: "späce", Name: "ünïcode", Text: "日本語 🎉", TS: 18446744073709551615},
		RoomList{Rooms: []string{}},
		RoomList{Rooms: []string{"a", "b", "c"}},
		MemberList{Room: "a", Members: []string{"alice"}},
	}

	for _, ev := range events {
		frame, err := EncodeEvent(ev)
		require.NoError(t, err)
		decoded, err := DecodeEvent(frame)
		require.NoError(t, err)
		assert.Equal(t, ev, decoded)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	requests := []ClientRequest{
		JoinRequest{Room: "rust", Name: "alice"},
		LeaveRequest{Room: "rust"},
		MessageRequest{Room: "rust", Text: "hi there"},
		RoomListRequest{},
		MembersRequest{Room: "rust"},
	}

	for _, req := range requests {
		data, err := EncodeRequest(req)
		require.NoError(t, err)
		decoded, err := DecodeRequest(data)
		require.NoError(t, err)
		assert.Equal(t, req, decoded)
	}
}

func TestEncodeRequest_RoomListIsBareString(t *testing.T) {
	data, err := EncodeRequest(RoomListRequest{})
	require.NoError(t, err)
	assert.Equal(t, `"RoomList"`, string(data))
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"Bogus":{}}`))
	assert.Error(t, err)

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestEventName(t *testing.T) {
	assert.Equal(t, "NewMessage", EventName(NewMessage{}))
	assert.Equal(t, "UserJoined", EventName(UserJoined{}))
	assert.Equal(t, "RoomList", EventName(RoomList{}))
}
