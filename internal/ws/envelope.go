package ws

import "encoding/json"

const (
	EventJoin   = "join"
	EventJoined = "joined"
	EventError  = "error"
)

// Frame is the only shape exchanged on the socket in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

type joinData struct {
	UserID string `json:"userId"`
}

type errorData struct {
	Message string `json:"message"`
}
