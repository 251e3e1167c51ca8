package ws

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Envelope is the frame every message travels in.
// Requests may carry an id which the response echoes back.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

func encode(event, id string, payload any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, ID: id, Data: payload})
}

// VideoFrameMessage carries one downscaled JPEG frame, base64 encoded.
type VideoFrameMessage struct {
	Image string `json:"image"`
}

// decodeData unmarshals a request payload. Missing or malformed payloads are
// protocol errors.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", domain.ErrProtocol)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	return nil
}
