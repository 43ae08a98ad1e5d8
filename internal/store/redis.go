package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dencamenew/vsuet-attendance/internal/app"
)

const (
	sessionKeyPrefix = "attendance:session:"
	membersKeySuffix = ":students"
	channelPrefix    = "attendance:token:"

	fieldSessionID   = "session_id"
	fieldSubjectName = "subject_name"
	fieldSubjectType = "subject_type"
	fieldGroupName   = "group_name"
	fieldDate        = "date"
	fieldLessonStart = "lesson_start_time"
	fieldToken       = "current_token"
	fieldActive      = "active"
	fieldCreatedAt   = "created_at"

	activeTrue  = "1"
	activeFalse = "0"
)

// RedisStore keeps session state in Redis: one hash per session plus a sorted
// set of checked-in students scored by check-in time. Token announcements ride
// on Redis pub/sub channels, one per session.
type RedisStore struct {
	client  *redis.Client
	timeNow func() time.Time
}

// NewRedisClient builds the go-redis client from configuration and verifies
// connectivity so misconfiguration is surfaced during startup.
func NewRedisClient(ctx context.Context, cfg app.RedisConfig) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	return client, nil
}

// NewRedisStore wraps an established Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		timeNow: time.Now,
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }
func membersKey(id string) string { return sessionKeyPrefix + id + membersKeySuffix }
func channelName(id string) string {
	return channelPrefix + id
}

// Create persists the session hash. The session_id marker field doubles as the
// existence guard: HSETNX on it fails when the key is already taken.
func (s *RedisStore) Create(ctx context.Context, id string, meta Metadata, firstToken string) error {
	key := sessionKey(id)

	created, err := s.client.HSetNX(ctx, key, fieldSessionID, id).Result()
	if err != nil {
		return fmt.Errorf("store: create session %s: %w", id, err)
	}
	if !created {
		return ErrSessionExists
	}

	err = s.client.HSet(ctx, key,
		fieldSubjectName, meta.SubjectName,
		fieldSubjectType, meta.SubjectType,
		fieldGroupName, meta.GroupName,
		fieldDate, meta.Date,
		fieldLessonStart, meta.LessonStartTime,
		fieldToken, firstToken,
		fieldActive, activeTrue,
		fieldCreatedAt, strconv.FormatInt(s.timeNow().Unix(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("store: create session %s: %w", id, err)
	}
	return nil
}

// GetSession loads the whole hash; an empty reply means the key is missing.
func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	values, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", id, err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	session := &Session{
		ID: id,
		Metadata: Metadata{
			SubjectName:     values[fieldSubjectName],
			SubjectType:     values[fieldSubjectType],
			GroupName:       values[fieldGroupName],
			Date:            values[fieldDate],
			LessonStartTime: values[fieldLessonStart],
		},
		CurrentToken: values[fieldToken],
		Active:       values[fieldActive] == activeTrue,
	}

	if raw := values[fieldCreatedAt]; raw != "" {
		if seconds, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			session.CreatedAt = time.Unix(seconds, 0)
		}
	}

	return session, nil
}

func (s *RedisStore) CurrentToken(ctx context.Context, id string) (string, error) {
	token, err := s.client.HGet(ctx, sessionKey(id), fieldToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: current token %s: %w", id, err)
	}
	return token, nil
}

func (s *RedisStore) IsActive(ctx context.Context, id string) (bool, error) {
	active, err := s.client.HGet(ctx, sessionKey(id), fieldActive).Result()
	if errors.Is(err, redis.Nil) {
		return false, ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("store: active flag %s: %w", id, err)
	}
	return active == activeTrue, nil
}

func (s *RedisStore) SetToken(ctx context.Context, id, token string) error {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}

	if err := s.client.HSet(ctx, sessionKey(id), fieldToken, token).Err(); err != nil {
		return fmt.Errorf("store: set token %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Close(ctx context.Context, id string) (bool, error) {
	active, err := s.IsActive(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.client.HSet(ctx, sessionKey(id), fieldActive, activeFalse).Err(); err != nil {
		return false, fmt.Errorf("store: close session %s: %w", id, err)
	}
	return active, nil
}

// AddMember records the student in the session's sorted set, scored by
// check-in time. ZADD NX makes repeat check-ins no-ops and reports whether the
// member was new in the same round trip.
func (s *RedisStore) AddMember(ctx context.Context, id, studentID string) (bool, error) {
	added, err := s.client.ZAddNX(ctx, membersKey(id), redis.Z{
		Score:  float64(s.timeNow().UnixNano()),
		Member: studentID,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("store: add member %s to %s: %w", studentID, id, err)
	}
	return added == 1, nil
}

// ListMembers returns checked-in students in check-in order.
func (s *RedisStore) ListMembers(ctx context.Context, id string) ([]string, error) {
	members, err := s.client.ZRange(ctx, membersKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list members %s: %w", id, err)
	}
	return members, nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	count, err := s.client.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("store: exists %s: %w", id, err)
	}
	return count > 0, nil
}

// SessionIDs walks the keyspace with SCAN rather than KEYS so enumeration does
// not stall a shared Redis.
func (s *RedisStore) SessionIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("store: scan sessions: %w", err)
		}

		for _, key := range keys {
			if strings.HasSuffix(key, membersKeySuffix) {
				continue
			}
			ids = append(ids, strings.TrimPrefix(key, sessionKeyPrefix))
		}

		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

func (s *RedisStore) PublishToken(ctx context.Context, id, token string) error {
	if err := s.client.Publish(ctx, channelName(id), token).Err(); err != nil {
		return fmt.Errorf("store: publish token for %s: %w", id, err)
	}
	return nil
}

// SubscribeTokens opens a pub/sub subscription on the session's token channel.
// The subscription confirmation is awaited so that a publish immediately after
// subscribing is not lost.
func (s *RedisStore) SubscribeTokens(ctx context.Context, id string) (*TokenSubscription, error) {
	pubsub := s.client.Subscribe(ctx, channelName(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("store: subscribe tokens for %s: %w", id, err)
	}
	return newTokenSubscription(pubsub), nil
}

// TokenSubscription adapts a Redis pub/sub subscription into a plain string
// channel of token values.
type TokenSubscription struct {
	pubsub    *redis.PubSub
	tokens    chan string
	done      chan struct{}
	closeOnce sync.Once
}

func newTokenSubscription(pubsub *redis.PubSub) *TokenSubscription {
	sub := &TokenSubscription{
		pubsub: pubsub,
		tokens: make(chan string, 8),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.tokens)
		for msg := range pubsub.Channel() {
			select {
			case sub.tokens <- msg.Payload:
			case <-sub.done:
				return
			}
		}
	}()

	return sub
}

// Tokens yields published token values. The channel closes when the
// subscription is closed or the connection is lost.
func (t *TokenSubscription) Tokens() <-chan string {
	return t.tokens
}

// Close tears down the subscription and releases the pub/sub connection.
// Safe to call more than once.
func (t *TokenSubscription) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.pubsub.Close()
	})
	return err
}
