package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Pawan459/url-shortener/internal/metrics"
	"github.com/Pawan459/url-shortener/internal/sched"
	"github.com/Pawan459/url-shortener/internal/taskqueue"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

const (
	DefaultBackoffBase   = 2 * time.Second
	DefaultBackoffMax    = 30 * time.Second
	DefaultPurgeInterval = 60 * time.Second
)

type StoreConfig struct {
	// Path of the durable snapshot file. Exclusively owned by this store;
	// two stores on one file will race.
	Path string

	Policy        Policy
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	PurgeInterval time.Duration
}

func (c *StoreConfig) applyDefaults() {
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = DefaultPurgeInterval
	}
	if c.Policy.MaxAge <= 0 {
		c.Policy.MaxAge = DefaultMaxAge
	}
	if c.Policy.MaxAttempts <= 0 {
		c.Policy.MaxAttempts = DefaultMaxAttempts
	}
}

// Store owns the pending message set and its persistence.
type Store struct {
	cfg   StoreConfig
	log   logx.Logger
	queue *taskqueue.Queue
	timer *sched.Service
	met   *metrics.Metrics

	mu       sync.Mutex
	messages map[string]Message
	inited   bool
	purgeJob *sched.Job

	// test seam
	now func() time.Time
}

// NewStore wires the store to its collaborators. queue must not be nil;
// timer and met may be nil (no purge timer / no metrics).
func NewStore(cfg StoreConfig, queue *taskqueue.Queue, timer *sched.Service, met *metrics.Metrics, log logx.Logger) *Store {
	cfg.applyDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{
		cfg:      cfg,
		log:      log,
		queue:    queue,
		timer:    timer,
		met:      met,
		messages: map[string]Message{},
		now:      time.Now,
	}
}

// Init loads the persisted snapshot and starts the periodic purge.
// Idempotent. A missing, unreadable, or structurally invalid file is never
// fatal: the store starts empty and the fallback is logged.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		return nil
	}
	s.inited = true

	s.messages = s.loadSnapshot()

	if s.timer != nil {
		job, err := s.timer.Every("notify-purge", s.cfg.PurgeInterval, func() { s.PurgeStale() })
		if err != nil {
			return fmt.Errorf("notify: schedule purge: %w", err)
		}
		s.purgeJob = job
	}
	s.log.Info("message store ready",
		logx.String("path", s.cfg.Path),
		logx.Int("pending", len(s.messages)),
		logx.Duration("purge_every", s.cfg.PurgeInterval))
	return nil
}

func (s *Store) loadSnapshot() map[string]Message {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("snapshot unreadable; starting empty", logx.String("path", s.cfg.Path), logx.Err(err))
		}
		return map[string]Message{}
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("snapshot invalid; starting empty", logx.String("path", s.cfg.Path), logx.Err(err))
		return map[string]Message{}
	}
	if snap.Messages == nil {
		return map[string]Message{}
	}
	return snap.Messages
}

// Add inserts a new pending message and persists the snapshot.
//
// Before inserting it scans for an existing pending message with the same
// clientId and a structurally equal payload; if one exists the call is a
// no-op (content dedup, not keyed by id) and nothing is written.
func (s *Store) Add(id, clientID string, payload any) error {
	raw, err := toRaw(payload)
	if err != nil {
		return fmt.Errorf("notify: payload not serializable: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.messages {
		if m.ClientID == clientID && payloadEqual(m.Payload, raw) {
			if s.met != nil {
				s.met.MessagesDeduped.Inc()
			}
			s.log.Debug("duplicate pending payload; skipping", logx.String("client", clientID), logx.String("existing", m.ID))
			return nil
		}
	}

	now := s.now().UnixMilli()
	s.messages[id] = Message{
		ID:          id,
		ClientID:    clientID,
		Payload:     raw,
		CreatedAt:   now,
		NextAttempt: now,
		RetryCount:  0,
	}
	if s.met != nil {
		s.met.MessagesQueued.Inc()
	}
	s.persistLocked()
	return nil
}

// MessagesToSend returns every message whose next attempt is due.
// Pure query; no delivery-order guarantee beyond readiness.
func (s *Store) MessagesToSend() []Message {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Message
	for _, m := range s.messages {
		if m.Due(now) {
			due = append(due, m)
		}
	}
	return due
}

// Ack removes the message and persists. Unknown ids are a defined no-op
// (no write): the message may already have been acked or purged.
func (s *Store) Ack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return
	}
	delete(s.messages, id)
	if s.met != nil {
		s.met.MessagesAcked.Inc()
	}
	s.persistLocked()
}

// OnSendFailure advances the message's retry state:
// retryCount += 1, nextAttempt = now + min(base * 2^retryCount, cap).
// Unknown ids are a defined no-op: the failure callback may race the purge.
func (s *Store) OnSendFailure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return
	}
	m.RetryCount++
	delay := s.backoff(m.RetryCount)
	m.NextAttempt = s.now().Add(delay).UnixMilli()
	s.messages[id] = m
	s.log.Debug("delivery failed; retry scheduled",
		logx.String("id", id),
		logx.String("client", m.ClientID),
		logx.Int("attempt", m.RetryCount),
		logx.Duration("delay", delay))
	s.persistLocked()
}

func (s *Store) backoff(retryCount int) time.Duration {
	// 2^retryCount overflows quickly; past the cap the exact value is moot.
	if retryCount > 30 {
		return s.cfg.BackoffMax
	}
	d := s.cfg.BackoffBase << uint(retryCount)
	if d > s.cfg.BackoffMax || d <= 0 {
		return s.cfg.BackoffMax
	}
	return d
}

// PurgeStale removes every expired message. Persists once, and only if
// something was removed.
func (s *Store) PurgeStale() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, m := range s.messages {
		if s.cfg.Policy.Expired(m, now) {
			delete(s.messages, id)
			removed++
		}
	}
	if removed == 0 {
		return
	}
	if s.met != nil {
		s.met.MessagesPurged.Add(float64(removed))
	}
	s.log.Info("purged stale messages", logx.Int("removed", removed), logx.Int("pending", len(s.messages)))
	s.persistLocked()
}

// Pending reports the number of messages currently in the store.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Close stops the purge timer. Already-enqueued persistence tasks are left
// to drain; the task queue's owner closes it.
func (s *Store) Close() {
	s.mu.Lock()
	job := s.purgeJob
	s.purgeJob = nil
	s.mu.Unlock()
	if job != nil {
		job.Stop()
	}
}

// persistLocked snapshots the full message set and hands the write to the
// serial task queue. Callers must hold s.mu.
func (s *Store) persistLocked() {
	data, err := json.Marshal(snapshot{Messages: s.messages})
	if err != nil {
		// Payloads were validated on the way in; this should not happen.
		s.log.Error("snapshot marshal failed", logx.Err(err))
		return
	}
	path := s.cfg.Path
	if err := s.queue.Enqueue(func() error {
		return writeFileAtomic(path, data)
	}); err != nil {
		s.log.Warn("persist skipped", logx.Err(err))
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func toRaw(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("invalid JSON payload")
		}
		return raw, nil
	}
	return json.Marshal(payload)
}
