package entities

// ConnectionModelSchema is the JSON Schema describing one
// ConnectionModelDefinition's request/response body shape, stored in its
// own collection (connection-model-schemas) so the dispatcher's
// sparse-projection cache never has to load it on the hot path.
type ConnectionModelSchema struct {
	Id                          Id             `json:"id" bson:"_id"`
	ConnectionModelDefinitionId Id             `json:"connectionModelDefinitionId" bson:"connectionModelDefinitionId"`
	Schema                      map[string]any `json:"schema,omitempty" bson:"schema,omitempty"`
	RecordMetadata              RecordMetadata `json:"recordMetadata" bson:",inline"`
}
