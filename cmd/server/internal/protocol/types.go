package protocol

// Client-issued actions.
const (
	ActionIdentify    = "identify"
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Server-issued message types.
const (
	TypeAck         = "ack"
	TypeErrorNotice = "errorNotice"
	TypePriceUpdate = "priceUpdate"
)

type WSRequest struct {
	Action  string         `json:"action"`
	Payload RequestPayload `json:"payload"`
	ID      string         `json:"id,omitempty"`
}

type RequestPayload struct {
	Symbol string `json:"symbol,omitempty"` // subscribe / unsubscribe
	Label  string `json:"label,omitempty"`  // identify
}

type WSResponse struct {
	Type    string      `json:"type"`             // "ack", "errorNotice", "priceUpdate"
	ID      string      `json:"id,omitempty"`     // Matches request ID
	Status  string      `json:"status,omitempty"` // "success", "error"
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
