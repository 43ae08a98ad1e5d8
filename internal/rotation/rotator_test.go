package rotation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/crypto"
)

func newTestStore(t *testing.T) *store.RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return store.NewRedisStore(client)
}

func openSession(t *testing.T, st *store.RedisStore, id, token string) {
	t.Helper()
	require.NoError(t, st.Create(context.Background(), id, store.Metadata{
		SubjectName: "Databases",
		GroupName:   "CS-31",
	}, token))
}

func TestRunOnceRotatesActiveSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	openSession(t, st, "s1", "tok-0")

	rotator := NewRotator(st, 10*time.Second, crypto.DefaultTokenBytes)
	require.NoError(t, rotator.RunOnce(ctx))

	token, err := st.CurrentToken(ctx, "s1")
	require.NoError(t, err)
	require.NotEqual(t, "tok-0", token)
	require.Len(t, token, crypto.DefaultTokenBytes*2)
}

func TestRunOncePublishesNewToken(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	openSession(t, st, "s1", "tok-0")

	sub, err := st.SubscribeTokens(ctx, "s1")
	require.NoError(t, err)
	defer sub.Close()

	rotator := NewRotator(st, 10*time.Second, crypto.DefaultTokenBytes)
	require.NoError(t, rotator.RunOnce(ctx))

	current, err := st.CurrentToken(ctx, "s1")
	require.NoError(t, err)

	select {
	case published := <-sub.Tokens():
		require.Equal(t, current, published)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rotation announcement")
	}
}

func TestRunOnceSkipsClosedSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	openSession(t, st, "s1", "tok-0")

	_, err := st.Close(ctx, "s1")
	require.NoError(t, err)

	rotator := NewRotator(st, 10*time.Second, crypto.DefaultTokenBytes)

	// Several ticks must leave the last token frozen.
	for i := 0; i < 3; i++ {
		require.NoError(t, rotator.RunOnce(ctx))
	}

	token, err := st.CurrentToken(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "tok-0", token)
}

func TestRunOnceIsolatesPerSessionFailures(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	openSession(t, st, "s1", "tok-0")
	openSession(t, st, "s2", "tok-0")

	calls := 0
	rotator := NewRotator(st, 10*time.Second, crypto.DefaultTokenBytes,
		WithGenerator(func(length int) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("entropy source failure")
			}
			return fmt.Sprintf("generated-%d", calls), nil
		}),
	)

	err := rotator.RunOnce(ctx)
	require.Error(t, err)

	// One of the two sessions still rotated despite the other failing.
	tok1, err1 := st.CurrentToken(ctx, "s1")
	require.NoError(t, err1)
	tok2, err2 := st.CurrentToken(ctx, "s2")
	require.NoError(t, err2)

	rotated := 0
	for _, tok := range []string{tok1, tok2} {
		if tok != "tok-0" {
			rotated++
		}
	}
	require.Equal(t, 1, rotated)
}

func TestStartIsNotReentrant(t *testing.T) {
	st := newTestStore(t)

	rotator := NewRotator(st, time.Second, crypto.DefaultTokenBytes)
	require.NoError(t, rotator.Start())
	defer func() { <-rotator.Stop().Done() }()

	require.Error(t, rotator.Start())
}

func TestStopWaitsForScheduler(t *testing.T) {
	st := newTestStore(t)

	rotator := NewRotator(st, time.Second, crypto.DefaultTokenBytes)
	require.NoError(t, rotator.Start())

	stopCtx := rotator.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
