package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/techaid-za/voicedesk/tools"
)

const bookingDraftKey = "voicedesk:booking:draft"

// Store persists the booking draft between sessions and tracks which
// sessions are live. All methods are best-effort; a storage failure
// never takes the voice link down.
type Store interface {
	SaveBooking(ctx context.Context, rec tools.BookingRecord) error
	LoadBooking(ctx context.Context) (tools.BookingRecord, bool, error)
	TrackSession(ctx context.Context, id string, ttl time.Duration)
	DropSession(ctx context.Context, id string)
	Close() error
}

// NewStore connects to Redis. If Redis is unreachable the daemon runs
// with an in-memory no-op store instead of failing startup.
func NewStore(addr, password string) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable (%v), booking drafts will not persist", err)
		client.Close()
		return noopStore{}
	}

	return &redisStore{client: client}
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) SaveBooking(ctx context.Context, rec tools.BookingRecord) error {
	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal booking draft: %w", err)
	}
	if err := s.client.Set(ctx, bookingDraftKey, data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("save booking draft: %w", err)
	}
	return nil
}

func (s *redisStore) LoadBooking(ctx context.Context) (tools.BookingRecord, bool, error) {
	var rec tools.BookingRecord

	data, err := s.client.Get(ctx, bookingDraftKey).Bytes()
	if err == redis.Nil {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("load booking draft: %w", err)
	}
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("decode booking draft: %w", err)
	}
	return rec, true, nil
}

func (s *redisStore) TrackSession(ctx context.Context, id string, ttl time.Duration) {
	s.client.HSet(ctx, "voicedesk:session:"+id, map[string]interface{}{
		"created_at": time.Now().Format(time.RFC3339),
		"status":     "active",
	})
	s.client.SAdd(ctx, "voicedesk:active_sessions", id)
	s.client.Expire(ctx, "voicedesk:session:"+id, ttl)
}

func (s *redisStore) DropSession(ctx context.Context, id string) {
	s.client.Del(ctx, "voicedesk:session:"+id)
	s.client.SRem(ctx, "voicedesk:active_sessions", id)
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

type noopStore struct{}

func (noopStore) SaveBooking(context.Context, tools.BookingRecord) error { return nil }
func (noopStore) LoadBooking(context.Context) (tools.BookingRecord, bool, error) {
	return tools.BookingRecord{}, false, nil
}
func (noopStore) TrackSession(context.Context, string, time.Duration) {}
func (noopStore) DropSession(context.Context, string)                 {}
func (noopStore) Close() error                                        { return nil }
