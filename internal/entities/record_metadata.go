package entities

import "time"

// RecordMetadata is flattened at the top level of every persisted document
// (bson:",inline"), matching the catalog's on-disk shape.
type RecordMetadata struct {
	CreatedAt  int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt  int64 `json:"updatedAt" bson:"updatedAt"`
	Updated    bool  `json:"updated" bson:"updated"`
	Active     bool  `json:"active" bson:"active"`
	Deprecated bool  `json:"deprecated" bson:"deprecated"`
	Deleted    bool  `json:"deleted" bson:"deleted"`
	Version    int   `json:"version" bson:"version"`
}

// NewRecordMetadata returns the metadata envelope for a freshly created
// record: active, not yet updated, version 1.
func NewRecordMetadata() RecordMetadata {
	now := time.Now().UTC().UnixMilli()
	return RecordMetadata{
		CreatedAt: now,
		UpdatedAt: now,
		Active:    true,
		Version:   1,
	}
}

// Touch returns a copy of rm stamped as updated at now, with version bumped.
func (rm RecordMetadata) Touch() RecordMetadata {
	rm.UpdatedAt = time.Now().UTC().UnixMilli()
	rm.Updated = true
	rm.Version++
	return rm
}

// Ownership identifies the tenant (and optionally the user/client) that
// owns a record. All list queries filter on Ownership.Id unless the caller
// explicitly asks to bypass that (x-pica-show-all-environments only lifts
// the environment filter, never the ownership one).
type Ownership struct {
	Id       string  `json:"buildableId" bson:"buildableId"`
	UserId   *string `json:"userId,omitempty" bson:"userId,omitempty"`
	ClientId string  `json:"clientId" bson:"clientId"`
}
