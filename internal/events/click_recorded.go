package events

// ClickRecorded is emitted after a redirect has been served and its
// click persisted. Consumers must treat EventID as the idempotency key.
type ClickRecorded struct {
	EventID    string `json:"eventId"`
	Code       string `json:"code"`
	OccurredAt string `json:"occurredAt"`
}
