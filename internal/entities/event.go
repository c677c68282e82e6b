package entities

// EventType discriminates the records written to the events collection by
// the event pipeline (spec.md §4.6).
type EventType string

const (
	EventTypePassthrough EventType = "passthrough"
	EventTypeUnified     EventType = "unified"
	EventTypeOAuth       EventType = "oauth"
)

// Event is one logged call: request/response shape plus enough catalog
// context to reconstruct what was called without re-joining Connection.
type Event struct {
	Id             Id             `json:"id" bson:"_id"`
	Type           EventType      `json:"type" bson:"type"`
	ConnectionId   Id             `json:"connectionId" bson:"connectionId"`
	ConnectionKey  string         `json:"connectionKey" bson:"connectionKey"`
	Platform       string         `json:"platform" bson:"platform"`
	ActionName     string         `json:"actionName,omitempty" bson:"actionName,omitempty"`
	RequestMethod  string         `json:"requestMethod" bson:"requestMethod"`
	RequestPath    string         `json:"requestPath" bson:"requestPath"`
	ResponseStatus int            `json:"responseStatus" bson:"responseStatus"`
	DurationMs     int64          `json:"durationMs" bson:"durationMs"`
	Ownership      Ownership      `json:"ownership" bson:"ownership"`
	RecordMetadata RecordMetadata `json:"recordMetadata" bson:",inline"`
}

// NewEvent mints an Event with fresh id and metadata.
func NewEvent(typ EventType, conn Connection, method, path string, status int, durationMs int64) Event {
	return Event{
		Id:             Now(IdPrefixEvent),
		Type:           typ,
		ConnectionId:   conn.Id,
		ConnectionKey:  conn.Key,
		Platform:       conn.Platform,
		RequestMethod:  method,
		RequestPath:    path,
		ResponseStatus: status,
		DurationMs:     durationMs,
		Ownership:      conn.Ownership,
		RecordMetadata: NewRecordMetadata(),
	}
}
