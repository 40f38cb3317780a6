package models

import (
	"time"

	"gorm.io/datatypes"
)

// IdempotencyKey stores the first completed response for a given request hash.
type IdempotencyKey struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Key            string         `json:"key" gorm:"size:128;uniqueIndex:idx_idempotency_keys_actor_key,priority:2"`
	ActorID        string         `json:"actor_id" gorm:"size:128;uniqueIndex:idx_idempotency_keys_actor_key,priority:1"`
	RequestHash    string         `json:"request_hash" gorm:"size:64"` // sha256 of method|path|body|actor
	Method         string         `json:"method" gorm:"size:10"`
	Path           string         `json:"path" gorm:"size:255"`
	ResponseStatus int            `json:"response_status"` // 0 => not completed yet
	ResponseBody   datatypes.JSON `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
}
