package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord caches the result of an admin balance adjustment so a
// retried request with the same Idempotency-Key is answered without a second entry.
type IdempotencyRecord struct {
	Key          string    `json:"key"` // Format: "actor_id:operation:client_key"
	RequestHash  string    `json:"request_hash"`
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildIdempotencyKey constructs the standard key format.
func BuildIdempotencyKey(actorID, operation, clientKey string) string {
	return actorID + ":" + operation + ":" + clientKey
}
