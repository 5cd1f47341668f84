package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Pawan459/url-shortener/internal/taskqueue"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

type storeFixture struct {
	store *Store
	queue *taskqueue.Queue
	path  string
	now   time.Time
}

func newFixture(t *testing.T, cfg StoreConfig) *storeFixture {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "notifications.json")
	}
	q := taskqueue.New(logx.Nop())
	t.Cleanup(q.Close)
	st := NewStore(cfg, q, nil, nil, logx.Nop())
	require.NoError(t, st.Init())

	f := &storeFixture{store: st, queue: q, path: cfg.Path, now: time.Now()}
	st.now = func() time.Time { return f.now }
	return f
}

func (f *storeFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func readSnapshot(t *testing.T, path string) map[string]Message {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap struct {
		Messages map[string]Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap.Messages
}

func TestAddThenImmediatelyDue(t *testing.T) {
	f := newFixture(t, StoreConfig{})

	require.NoError(t, f.store.Add("m1", "A", map[string]int{"x": 1}))

	due := f.store.MessagesToSend()
	require.Len(t, due, 1)
	require.Equal(t, "m1", due[0].ID)
	require.Equal(t, "A", due[0].ClientID)
	require.Equal(t, 0, due[0].RetryCount)
	require.Equal(t, due[0].CreatedAt, due[0].NextAttempt)
}

func TestContentDedup(t *testing.T) {
	f := newFixture(t, StoreConfig{})

	require.NoError(t, f.store.Add("id1", "A", map[string]int{"x": 1}))
	require.NoError(t, f.store.Add("id2", "A", map[string]int{"x": 1}))

	require.Equal(t, 1, f.store.Pending(), "same client + equal payload must dedup")

	// Different client or different payload is not a duplicate.
	require.NoError(t, f.store.Add("id3", "B", map[string]int{"x": 1}))
	require.NoError(t, f.store.Add("id4", "A", map[string]int{"x": 2}))
	require.Equal(t, 3, f.store.Pending())

	// Once the original is acked, the same content may be queued again.
	f.store.Ack("id1")
	require.NoError(t, f.store.Add("id5", "A", map[string]int{"x": 1}))
	require.Equal(t, 3, f.store.Pending())
}

func TestDedupIgnoresKeyOrder(t *testing.T) {
	f := newFixture(t, StoreConfig{})

	require.NoError(t, f.store.Add("id1", "A", json.RawMessage(`{"a":1,"b":2}`)))
	require.NoError(t, f.store.Add("id2", "A", json.RawMessage(`{"b":2,"a":1}`)))
	require.Equal(t, 1, f.store.Pending())
}

func TestBackoffDeterministic(t *testing.T) {
	f := newFixture(t, StoreConfig{BackoffBase: 2 * time.Second, BackoffMax: 30 * time.Second})
	require.NoError(t, f.store.Add("m1", "A", "payload"))

	want := []time.Duration{
		4 * time.Second,  // k=1: 2000 * 2^1
		8 * time.Second,  // k=2
		16 * time.Second, // k=3
		30 * time.Second, // k=4: 32s capped
		30 * time.Second, // k=5: still capped
	}
	for i, w := range want {
		f.store.OnSendFailure("m1")
		due := f.store.messageByID(t, "m1")
		require.Equal(t, i+1, due.RetryCount)
		require.Equal(t, f.now.Add(w).UnixMilli(), due.NextAttempt, "attempt %d", i+1)
	}
}

func (s *Store) messageByID(t *testing.T, id string) Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	require.True(t, ok)
	return m
}

func TestFailureHidesMessageUntilDue(t *testing.T) {
	f := newFixture(t, StoreConfig{})
	require.NoError(t, f.store.Add("m1", "A", "p"))

	f.store.OnSendFailure("m1")
	require.Empty(t, f.store.MessagesToSend(), "not due during backoff window")

	f.advance(4*time.Second + time.Millisecond)
	require.Len(t, f.store.MessagesToSend(), 1)
}

func TestAckIdempotent(t *testing.T) {
	f := newFixture(t, StoreConfig{})
	require.NoError(t, f.store.Add("m1", "A", "p"))

	f.store.Ack("m1")
	require.Equal(t, 0, f.store.Pending())
	f.store.Ack("m1") // second ack: defined no-op
	f.store.Ack("never-existed")
	require.Equal(t, 0, f.store.Pending())
}

func TestUnknownFailureIsNoop(t *testing.T) {
	f := newFixture(t, StoreConfig{})
	f.store.OnSendFailure("ghost")
	require.Equal(t, 0, f.store.Pending())
	f.queue.Drain()
	_, err := os.Stat(f.path)
	require.ErrorIs(t, err, os.ErrNotExist, "no-op must not write the snapshot")
}

func TestPurgeRemovesExpired(t *testing.T) {
	f := newFixture(t, StoreConfig{Policy: Policy{MaxAge: time.Hour, MaxAttempts: 3}})

	require.NoError(t, f.store.Add("young", "A", "a"))
	require.NoError(t, f.store.Add("spent", "B", "b"))
	for i := 0; i < 3; i++ {
		f.store.OnSendFailure("spent")
	}

	// "spent" hit the attempt limit but is not old; it must still go.
	f.store.PurgeStale()
	require.Equal(t, 1, f.store.Pending())
	require.Equal(t, "young", f.store.MessagesToSend()[0].ID)

	// Now expire by age.
	f.advance(2 * time.Hour)
	f.store.PurgeStale()
	require.Equal(t, 0, f.store.Pending())
}

func TestPurgeSurvivorsRespectPolicy(t *testing.T) {
	f := newFixture(t, StoreConfig{Policy: Policy{MaxAge: time.Hour, MaxAttempts: 5}})
	require.NoError(t, f.store.Add("m1", "A", 1))
	require.NoError(t, f.store.Add("m2", "B", 2))
	f.store.OnSendFailure("m1")

	f.store.PurgeStale()

	now := f.now
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for _, m := range f.store.messages {
		require.Less(t, m.RetryCount, 5)
		require.Less(t, m.Age(now), time.Hour)
	}
}

func TestWriteOrderingUnderConcurrentAdds(t *testing.T) {
	f := newFixture(t, StoreConfig{})
	// Concurrent adds race on the map; the serial queue orders the writes.
	// Real wall time is fine here, distinct payloads avoid the dedup guard.
	f.store.now = time.Now

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, f.store.Add(
				"m"+string(rune('A'+i/26))+string(rune('a'+i%26)),
				"client",
				map[string]int{"seq": i},
			))
		}(i)
	}
	wg.Wait()
	f.queue.Drain()

	require.Equal(t, n, f.store.Pending())
	persisted := readSnapshot(t, f.path)
	require.Len(t, persisted, n)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	for id, m := range f.store.messages {
		got, ok := persisted[id]
		require.True(t, ok, "message %s missing from disk", id)
		require.Equal(t, m.CreatedAt, got.CreatedAt)
		require.True(t, payloadEqual(m.Payload, got.Payload))
	}
}

func TestInitRecoversState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	f := newFixture(t, StoreConfig{Path: path})
	require.NoError(t, f.store.Add("m1", "A", map[string]string{"k": "v"}))
	f.store.OnSendFailure("m1")
	f.queue.Drain()

	q2 := taskqueue.New(logx.Nop())
	t.Cleanup(q2.Close)
	st2 := NewStore(StoreConfig{Path: path}, q2, nil, nil, logx.Nop())
	require.NoError(t, st2.Init())

	require.Equal(t, 1, st2.Pending())
	m := st2.messageByID(t, "m1")
	require.Equal(t, 1, m.RetryCount)
}

func TestInitToleratesMissingAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	missing := NewStore(StoreConfig{Path: filepath.Join(dir, "nope.json")},
		taskqueue.New(logx.Nop()), nil, nil, logx.Nop())
	require.NoError(t, missing.Init())
	require.Equal(t, 0, missing.Pending())

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	st := NewStore(StoreConfig{Path: corrupt}, taskqueue.New(logx.Nop()), nil, nil, logx.Nop())
	require.NoError(t, st.Init())
	require.Equal(t, 0, st.Pending())

	// Init is idempotent.
	require.NoError(t, st.Init())
}

func TestRejectsUnserializablePayload(t *testing.T) {
	f := newFixture(t, StoreConfig{})
	require.Error(t, f.store.Add("m1", "A", make(chan int)))
	require.Equal(t, 0, f.store.Pending())
}
