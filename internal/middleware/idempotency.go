package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotencyReplayHeader = "Idempotent-Replayed"
	idempotencyKeyPrefix    = "idempotency:"
)

type idempotencyStatus string

const (
	idempotencyProcessing idempotencyStatus = "processing"
	idempotencyCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
}

type IdempotencyConfig struct {
	// TTL of a completed record.
	TTL time.Duration
	// ProcessingTTL caps how long a crashed request blocks its key.
	ProcessingTTL time.Duration
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, ProcessingTTL: time.Minute}
}

// Idempotency replays the stored response for a repeated Idempotency-Key. Requests without the header pass through,
// and Redis failures fail open.
func Idempotency(rdb redis.UniversalClient, cfg IdempotencyConfig, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		identity, _ := CurrentUser(c)
		redisKey := idempotencyKeyPrefix + identity.UserID + ":" + key
		hash := requestHash(c, identity.UserID, body)
		ctx := c.Request.Context()

		claimed, err := claimIdempotencyKey(ctx, rdb, redisKey, hash, cfg.ProcessingTTL)
		if err != nil {
			log.Warn("idempotency store unavailable, continuing", zap.Error(err))
			c.Next()
			return
		}

		if !claimed {
			existing, err := loadIdempotencyRecord(ctx, rdb, redisKey)
			if err != nil {
				log.Warn("idempotency record unreadable, continuing", zap.Error(err))
				c.Next()
				return
			}
			switch {
			case existing.RequestHash != hash:
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency key reused with a different request"})
			case existing.Status == idempotencyProcessing:
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in progress"})
			default:
				c.Header(IdempotencyReplayHeader, "true")
				c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
				c.Abort()
			}
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = rw
		c.Next()

		// 5xx is retryable by the client, so the key is released instead of pinned to the failure.
		status := rw.Status()
		if status >= http.StatusInternalServerError {
			if err := rdb.Del(ctx, redisKey).Err(); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
			return
		}

		record := idempotencyRecord{
			Status:       idempotencyCompleted,
			RequestHash:  hash,
			ResponseCode: status,
			ResponseBody: rw.body.String(),
		}
		data, _ := json.Marshal(record)
		if err := rdb.Set(ctx, redisKey, string(data), cfg.TTL).Err(); err != nil {
			log.Warn("failed to store idempotent response", zap.Error(err))
		}
	}
}

func claimIdempotencyKey(ctx context.Context, rdb redis.UniversalClient, key, hash string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(idempotencyRecord{Status: idempotencyProcessing, RequestHash: hash})
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, string(data), ttl).Result()
}

func loadIdempotencyRecord(ctx context.Context, rdb redis.UniversalClient, key string) (*idempotencyRecord, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func requestHash(c *gin.Context, userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))
	h.Write([]byte(userID))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
