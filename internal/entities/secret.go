package entities

// Secret is an append-only audit record of an opaque secretsServiceId
// minted by the secrets package: the admin catalog can list and describe
// secrets without ever seeing the plaintext they point at. Records are
// never updated once written; PATCH is limited to a human-readable
// description, never the secretsServiceId itself.
type Secret struct {
	Id               Id             `json:"id" bson:"_id"`
	SecretsServiceId string         `json:"secretsServiceId" bson:"secretsServiceId"`
	Description      string         `json:"description,omitempty" bson:"description,omitempty"`
	Ownership        Ownership      `json:"ownership" bson:"ownership"`
	RecordMetadata   RecordMetadata `json:"recordMetadata" bson:",inline"`
}
