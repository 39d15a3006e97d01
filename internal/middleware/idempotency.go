package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader       = "Idempotency-Key"
	LegacyIdempotencyKeyHeader = "X-Idempotency-Key"
	IdempotentReplayedHeader   = "Idempotent-Replayed"

	idempotencyKeyPrefix = "idempotency:"
	processingTTL        = 60 * time.Second
)

var ErrIdempotencyMiss = errors.New("idempotency record not found")

type idempotencyStatus string

const (
	statusProcessing idempotencyStatus = "processing"
	statusCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IdempotencyStore хранит записи идемпотентности.
type IdempotencyStore interface {
	// Reserve атомарно создаёт запись; false: ключ уже занят.
	Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Get возвращает ErrIdempotencyMiss, если записи нет.
	Get(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ===== Redis =====

type RedisIdempotencyStore struct {
	client redis.Cmdable
}

func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key, value, ttl).Result()
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrIdempotencyMiss
	}
	return b, err
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKeyPrefix+key, value, ttl).Err()
}

func (s *RedisIdempotencyStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// ===== In-memory (один процесс, без Redis) =====

type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{items: make(map[string]memoryItem), now: time.Now}
}

func (s *MemoryIdempotencyStore) lookup(key string) (memoryItem, bool) {
	it, ok := s.items[key]
	if ok && s.now().After(it.expiresAt) {
		delete(s.items, key)
		return memoryItem{}, false
	}
	return it, ok
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.items[key] = memoryItem{value: value, expiresAt: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.lookup(key)
	if !ok {
		return nil, ErrIdempotencyMiss
	}
	return it.value, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// ===== Middleware =====

// Idempotency повторяет сохранённый ответ для запроса с тем же Idempotency-Key.
// Запросы без ключа проходят как есть; ответы 5xx не кэшируются.
// При недоступности хранилища запрос обрабатывается без идемпотентности.
func Idempotency(store IdempotencyStore, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			key = c.GetHeader(LegacyIdempotencyKeyHeader)
		}
		if key == "" {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				abortJSON(c, http.StatusBadRequest, "BAD_REQUEST", "failed to read request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		hash := requestHash(c.Request.Method, c.Request.URL.Path, body)
		ctx := c.Request.Context()

		existing, err := loadRecord(ctx, store, key)
		switch {
		case err == nil:
			replay(c, existing, hash)
			return
		case !errors.Is(err, ErrIdempotencyMiss):
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		rec := idempotencyRecord{Status: statusProcessing, RequestHash: hash, CreatedAt: time.Now().UTC()}
		data, _ := json.Marshal(rec)
		reserved, err := store.Reserve(ctx, key, data, processingTTL)
		if err != nil {
			log.Warn("idempotency reserve failed", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			if existing, err := loadRecord(ctx, store, key); err == nil {
				replay(c, existing, hash)
				return
			}
			abortJSON(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		// контекст запроса может быть уже отменён
		saveCtx := context.WithoutCancel(ctx)
		status := rw.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Delete(saveCtx, key); err != nil {
				log.Warn("idempotency delete failed", zap.Error(err))
			}
			return
		}

		rec.Status = statusCompleted
		rec.ResponseCode = status
		rec.ResponseBody = rw.body.String()
		data, _ = json.Marshal(rec)
		if err := store.Save(saveCtx, key, data, ttl); err != nil {
			log.Warn("idempotency save failed", zap.Error(err))
		}
	}
}

func loadRecord(ctx context.Context, store IdempotencyStore, key string) (*idempotencyRecord, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func replay(c *gin.Context, rec *idempotencyRecord, hash string) {
	switch {
	case rec.RequestHash != hash:
		abortJSON(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_CONFLICT", "idempotency key already used with a different request")
	case rec.Status == statusProcessing:
		abortJSON(c, http.StatusConflict, "REQUEST_IN_PROGRESS", "a request with this idempotency key is being processed")
	default:
		c.Header(IdempotentReplayedHeader, "true")
		c.Data(rec.ResponseCode, "application/json; charset=utf-8", []byte(rec.ResponseBody))
		c.Abort()
	}
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
