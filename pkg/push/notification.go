package push

import "encoding/json"

// Notification is a decoded push payload.
type Notification struct {
	// PushID identifies the push for statistics tracking.
	PushID string `json:"push_id,omitempty"`

	// Title is the notification title.
	Title string `json:"title,omitempty"`

	// Body is the notification body text.
	Body string `json:"body,omitempty"`

	// Badge is the badge count the server wants shown, when present.
	Badge *int `json:"badge,omitempty"`

	// Payload is the application-defined extra data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Raw is the undecoded frame payload. Always set, also when the
	// payload was not valid JSON.
	Raw []byte `json:"-"`
}

// decodeNotification parses a push frame payload. A payload that is not
// valid JSON still produces a notification carrying the raw bytes.
func decodeNotification(payload []byte) Notification {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		n = Notification{}
	}
	n.Raw = payload
	return n
}
