package types

// Event is a structured record of a state change or advisory warning.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
