package dispatch

import "encoding/json"

// Wire message types. All frames are JSON text messages.
const (
	TypeClientID = "CLIENT_ID" // server -> client, identity confirmation
	TypeDelivery = "DELIVERY"  // server -> client, notification payload
	TypeAck      = "ACK"       // client -> server, delivery confirmation
)

type envelope struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}
