// Package wsserver streams hotkey activation events to local websocket
// clients.
//
// # Wire protocol
//
// Server to client: JSON text frames, either an Event
// ({"type":"activation",...}) or an error ({"type":"error","message":...}).
//
// Client to server: {"action":"subscribe"|"unsubscribe","bindings":[...]}.
// A client that never subscribes receives every event. Once it subscribes
// it only receives events for the named bindings.
package wsserver

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	eventTypeActivation = "activation"
	eventTypeError      = "error"
)

// Event describes one accepted hotkey activation.
type Event struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Binding  string    `json:"binding"`
	Hotkey   string    `json:"hotkey"`
	HotkeyID int       `json:"hotkeyId"`
	Time     time.Time `json:"time"`
}

// subscribeAction and unsubscribeAction are the valid values for subscribeMsg.Action.
const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
)

type subscribeMsg struct {
	Action   string   `json:"action"`
	Bindings []string `json:"bindings"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeEvent renders ev as a text frame payload. Type is always set to
// "activation".
func EncodeEvent(ev Event) ([]byte, error) {
	if ev.Binding == "" {
		return nil, fmt.Errorf("wsserver: encode event: binding must not be empty")
	}
	ev.Type = eventTypeActivation
	return json.Marshal(ev)
}

// DecodeEvent parses a payload produced by EncodeEvent.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("wsserver: decode event: %w", err)
	}
	if ev.Type != eventTypeActivation {
		return Event{}, fmt.Errorf("wsserver: decode event: unexpected type %q", ev.Type)
	}
	return ev, nil
}
