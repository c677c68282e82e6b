package entities

// Knowledge is a freeform note attached to a platform, surfaced through
// the admin catalog's generic CRUD endpoint for editors and the unified
// extractor's documentation lookups alike.
type Knowledge struct {
	Id                 Id             `json:"id" bson:"_id"`
	ConnectionPlatform string         `json:"connectionPlatform" bson:"connectionPlatform"`
	Title              string         `json:"title" bson:"title"`
	Knowledge          string         `json:"knowledge,omitempty" bson:"knowledge,omitempty"`
	Tags               []string       `json:"tags,omitempty" bson:"tags,omitempty"`
	Ownership          Ownership      `json:"ownership" bson:"ownership"`
	RecordMetadata     RecordMetadata `json:"recordMetadata" bson:",inline"`
}
