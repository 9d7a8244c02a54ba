package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func pendingRequest(id string) *models.PendingRequest {
	return &models.PendingRequest{
		RequestID: id,
		SessionID: "sess-1",
		InputType: models.InputText,
		ExtractedContent: models.ExtractedContent{
			Text:             "plain notes",
			Confidence:       1.0,
			ExtractionMethod: models.MethodDirect,
			SourceInputType:  models.InputText,
		},
		DraftPlan: models.ExecutionPlan{
			TaskType:              models.TaskTextExtraction,
			NeedsClarification:    true,
			ClarificationQuestion: "What should I do with this file?",
			Parameters:            map[string]string{models.ParamCandidates: "text_extraction,conversational"},
		},
	}
}

type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// storeFactories runs the shared contract against every backend.
func storeFactories(t *testing.T, ttl time.Duration, c *clock) map[string]Store {
	client, _ := setupRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(ttl).WithClock(c.now),
		"redis":  NewRedisStore(client, "test:pending:", ttl, logger.NewTestLogger(t)).WithClock(c.now),
	}
}

// ==========================
// Shared contract
// ==========================

func TestStore_TakeIsSingleUse(t *testing.T) {
	for name, store := range storeFactories(t, 10*time.Minute, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := store.Put(ctx, pendingRequest(""))
			require.NoError(t, err)
			require.NotEmpty(t, id)

			got, err := store.Take(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, id, got.RequestID)
			assert.Equal(t, "plain notes", got.ExtractedContent.Text)
			assert.Equal(t, "text_extraction,conversational", got.DraftPlan.Param(models.ParamCandidates))

			_, err = store.Take(ctx, id)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_UnknownID(t *testing.T) {
	for name, store := range storeFactories(t, time.Minute, newClock()) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Take(context.Background(), "never-issued")
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_ExpiredEntryIsNotReturned(t *testing.T) {
	c := newClock()
	for name, store := range storeFactories(t, time.Minute, c) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := store.Put(ctx, pendingRequest(""))
			require.NoError(t, err)

			c.advance(2 * time.Minute)
			defer func() { c.t = newClock().t }()

			_, err = store.Take(ctx, id)
			assert.ErrorIs(t, err, ErrSessionExpired)

			_, err = store.Take(ctx, id)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestStore_DuplicateID(t *testing.T) {
	for name, store := range storeFactories(t, time.Minute, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Put(ctx, pendingRequest("req-1"))
			require.NoError(t, err)

			_, err = store.Put(ctx, pendingRequest("req-1"))
			assert.ErrorIs(t, err, ErrDuplicateRequest)
		})
	}
}

func TestStore_ConcurrentTakeDeliversOnce(t *testing.T) {
	for name, store := range storeFactories(t, time.Minute, newClock()) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := store.Put(ctx, pendingRequest(""))
			require.NoError(t, err)

			var hits int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := store.Take(ctx, id); err == nil {
						atomic.AddInt32(&hits, 1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), hits)
		})
	}
}

// ==========================
// Backend specifics
// ==========================

func TestMemoryStore_PutPurgesExpired(t *testing.T) {
	c := newClock()
	store := NewMemoryStore(time.Minute).WithClock(c.now)
	ctx := context.Background()

	_, err := store.Put(ctx, pendingRequest("old"))
	require.NoError(t, err)
	c.advance(5 * time.Minute)

	_, err = store.Put(ctx, pendingRequest("new"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestRedisStore_KeyExpiresWithTTL(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewRedisStore(client, "test:pending:", time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	id, err := store.Put(ctx, pendingRequest(""))
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:pending:"+id))
	assert.Equal(t, time.Minute, mr.TTL("test:pending:"+id))

	mr.FastForward(2 * time.Minute)

	_, err = store.Take(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	client, mr := setupRedis(t)
	require.NoError(t, mr.Set("test:pending:bad", "{not json"))

	store := NewRedisStore(client, "test:pending:", time.Minute, logger.NewTestLogger(t))
	_, err := store.Take(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, mr.Exists("test:pending:bad"))
}

func TestRedisStore_BackendErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "test:pending:", time.Minute, logger.NewNoOpLogger())

	mock.ExpectGetDel("test:pending:req-9").SetErr(errors.New("connection reset"))

	_, err := store.Take(context.Background(), "req-9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PutFailsWhenRedisIsDown(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewRedisStore(client, "test:pending:", time.Minute, logger.NewNoOpLogger())
	mr.Close()

	_, err := store.Put(context.Background(), pendingRequest(""))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateRequest)
}
