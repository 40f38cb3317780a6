package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"hospital-billing/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const IdempotencyHeader = "Idempotency-Key"

// Idempotency processes Idempotency-Key for mutating HTTP methods, scoped to
// the authenticated actor. A completed key replays its stored response
// without running the handler; a key still in flight is rejected; a key
// reused with a different request is a conflict. Run it after RequireActor.
func Idempotency(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(IdempotencyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		actor := ActorFrom(c)
		if actor.ID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "auth context missing")
		}

		path := c.OriginalURL() // includes query string
		reqHash := requestHash(method, path, c.Body(), actor.ID)

		// ---- Phase 1: claim the key or find the earlier attempt
		var (
			existing models.IdempotencyKey
			claimed  bool
		)
		err := db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			err := tx.Where("actor_id = ? AND key = ?", actor.ID, key).First(&existing).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			existing = models.IdempotencyKey{
				Key:         key,
				ActorID:     actor.ID,
				RequestHash: reqHash,
				Method:      method,
				Path:        path,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "actor_id"}, {Name: "key"}},
				DoNothing: true,
			}).Create(&existing)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost a unique race: the other request owns the key.
				return tx.Where("actor_id = ? AND key = ?", actor.ID, key).First(&existing).Error
			}
			claimed = true
			return nil
		})
		if err != nil {
			return err
		}

		if existing.RequestHash != reqHash {
			return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
		}
		if !claimed {
			if existing.ResponseStatus == 0 {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
			}
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		// ---- Run the handler once. A failed attempt releases the key so the client can retry.
		if err := c.Next(); err != nil {
			if e := db.Delete(&models.IdempotencyKey{}, existing.ID).Error; e != nil {
				log.Warn("idempotency key release failed", zap.String("key", key), zap.Error(e))
			}
			return err
		}

		// ---- Phase 2: store the response; best-effort, the handler already succeeded.
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		err = db.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"response_status": c.Response().StatusCode(),
				"response_body":   datatypes.JSON(blob),
				"completed_at":    &now,
			}).Error
		if err != nil {
			log.Warn("idempotency response not stored", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
}

// requestHash fingerprints method|path|body|actor.
func requestHash(method, path string, body []byte, actorID string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(path))
	h.Write([]byte{'\n'})
	h.Write(body)
	h.Write([]byte{'\n'})
	h.Write([]byte(actorID))
	return hex.EncodeToString(h.Sum(nil))
}
