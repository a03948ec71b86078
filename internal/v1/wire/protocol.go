// Package wire defines the JSON protocol spoken between clients and the
// server. Both directions use externally tagged values: a variant carrying
// data is encoded as {"VariantName":{...fields}}, a variant without data as
// the bare string "VariantName".
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/mychat/chathub/internal/v1/bufpool"
)

// ClientRequest is a client → server request. Exactly one variant per
// message.
type ClientRequest interface {
	isClientRequest()
}

// JoinRequest asks to join a room under a display name.
type JoinRequest struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// LeaveRequest asks to leave a room.
type LeaveRequest struct {
	Room string `json:"room"`
}

// MessageRequest sends a chat message into a room.
type MessageRequest struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// RoomListRequest asks for the current room names.
type RoomListRequest struct{}

// MembersRequest asks for the members of a room.
type MembersRequest struct {
	Room string `json:"room"`
}

func (JoinRequest) isClientRequest()     {}
func (LeaveRequest) isClientRequest()    {}
func (MessageRequest) isClientRequest()  {}
func (RoomListRequest) isClientRequest() {}
func (MembersRequest) isClientRequest()  {}

// ServerEvent is a server → client event push.
type ServerEvent interface {
	isServerEvent()
}

// UserJoined announces a user joining a room.
type UserJoined struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// UserLeft announces a user leaving a room.
type UserLeft struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// NewMessage carries one chat message. TS is unsigned milliseconds since
// epoch.
type NewMessage struct {
	Room string `json:"room"`
	Name string `json:"name"`
	Text string `json:"text"`
	TS   uint64 `json:"ts"`
}

// RoomList carries the current room names.
type RoomList struct {
	Rooms []string `json:"rooms"`
}

// MemberList carries the current members of a room.
type MemberList struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

func (UserJoined) isServerEvent() {}
func (UserLeft) isServerEvent()   {}
func (NewMessage) isServerEvent() {}
func (RoomList) isServerEvent()   {}
func (MemberList) isServerEvent() {}

// requestTag returns the wire tag for a request variant.
func requestTag(req ClientRequest) string {
	switch req.(type) {
	case JoinRequest:
		return "Join"
	case LeaveRequest:
		return "Leave"
	case MessageRequest:
		return "Message"
	case RoomListRequest:
		return "RoomList"
	case MembersRequest:
		return "Members"
	}
	return ""
}

// eventTag returns the wire tag for an event variant.
func eventTag(ev ServerEvent) string {
	switch ev.(type) {
	case UserJoined:
		return "UserJoined"
	case UserLeft:
		return "UserLeft"
	case NewMessage:
		return "NewMessage"
	case RoomList:
		return "RoomList"
	case MemberList:
		return "MemberList"
	}
	return ""
}

// EventName returns the wire tag of a ServerEvent, for metrics and logs.
func EventName(ev ServerEvent) string {
	return eventTag(ev)
}

// EncodeRequest encodes a ClientRequest into its wire form.
func EncodeRequest(req ClientRequest) ([]byte, error) {
	tag := requestTag(req)
	if tag == "" {
		return nil, fmt.Errorf("wire: unknown request type %T", req)
	}
	// Dataless variants encode as a bare string.
	if _, ok := req.(RoomListRequest); ok {
		return json.Marshal(tag)
	}
	return json.Marshal(map[string]ClientRequest{tag: req})
}

// DecodeRequest decodes one wire frame into a ClientRequest. Unknown tags
// and payloads with more than one variant are rejected.
func DecodeRequest(data []byte) (ClientRequest, error) {
	// Bare string form first.
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag == "RoomList" {
			return RoomListRequest{}, nil
		}
		return nil, fmt.Errorf("wire: unknown request %q", tag)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("wire: malformed request: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("wire: request must contain exactly one variant, got %d", len(envelope))
	}

	for tag, raw := range envelope {
		switch tag {
		case "Join":
			var req JoinRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("wire: malformed Join: %w", err)
			}
			return req, nil
		case "Leave":
			var req LeaveRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("wire: malformed Leave: %w", err)
			}
			return req, nil
		case "Message":
			var req MessageRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("wire: malformed Message: %w", err)
			}
			return req, nil
		case "RoomList":
			// Accept the {"RoomList":null} spelling too.
			return RoomListRequest{}, nil
		case "Members":
			var req MembersRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, fmt.Errorf("wire: malformed Members: %w", err)
			}
			return req, nil
		default:
			return nil, fmt.Errorf("wire: unknown request %q", tag)
		}
	}
	return nil, fmt.Errorf("wire: empty request")
}

// EncodeEvent serializes a ServerEvent once into a pooled buffer and
// freezes it into an immutable frame ready for fan-out.
func EncodeEvent(ev ServerEvent) (bufpool.Frame, error) {
	tag := eventTag(ev)
	if tag == "" {
		return nil, fmt.Errorf("wire: unknown event type %T", ev)
	}

	buf := bufpool.Global().Alloc(128)
	if err := json.NewEncoder(buf).Encode(map[string]ServerEvent{tag: ev}); err != nil {
		buf.Discard()
		return nil, fmt.Errorf("wire: encode %s: %w", tag, err)
	}
	// json.Encoder terminates the value with a newline the protocol does
	// not carry.
	buf.Truncate(buf.Len() - 1)
	return buf.Freeze(), nil
}

// DecodeEvent decodes one wire frame into a ServerEvent.
func DecodeEvent(data []byte) (ServerEvent, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("wire: malformed event: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("wire: event must contain exactly one variant, got %d", len(envelope))
	}

	for tag, raw := range envelope {
		switch tag {
		case "UserJoined":
			var ev UserJoined
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("wire: malformed UserJoined: %w", err)
			}
			return ev, nil
		case "UserLeft":
			var ev UserLeft
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("wire: malformed UserLeft: %w", err)
			}
			return ev, nil
		case "NewMessage":
			var ev NewMessage
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("wire: malformed NewMessage: %w", err)
			}
			return ev, nil
		case "RoomList":
			var ev RoomList
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("wire: malformed RoomList: %w", err)
			}
			return ev, nil
		case "MemberList":
			var ev MemberList
			if err := json.Unmarshal(raw, &ev); err != nil {
				return nil, fmt.Errorf("wire: malformed MemberList: %w", err)
			}
			return ev, nil
		default:
			return nil, fmt.Errorf("wire: unknown event %q", tag)
		}
	}
	return nil, fmt.Errorf("wire: empty event")
}
