package sched

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Pawan459/url-shortener/pkg/logx"
)

// Service is a single executor for the app's polling timers (message purge,
// delivery ticks, storage maintenance). Jobs are cancelable individually and
// the whole executor stops idempotently.
type Service struct {
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	started bool
	stopped bool
}

// Job is a handle to a scheduled function.
type Job struct {
	svc *Service
	id  cron.EntryID

	once sync.Once
}

// Stop cancels the job. Idempotent; already-running invocations finish.
func (j *Job) Stop() {
	if j == nil || j.svc == nil {
		return
	}
	j.once.Do(func() {
		j.svc.mu.Lock()
		defer j.svc.mu.Unlock()
		j.svc.c.Remove(j.id)
	})
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log}
	s.c = cron.New(cron.WithChain(cron.Recover(cronLogger{log: log})))
	return s
}

// Start begins dispatching jobs. Safe to call once; later calls are no-ops.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.c.Start()
}

// Every schedules fn at the given interval. The first run happens one
// interval after Start, matching ticker semantics.
func (s *Service) Every(name string, interval time.Duration, fn func()) (*Job, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sched: %s: interval must be > 0", name)
	}
	if fn == nil {
		return nil, errors.New("sched: nil func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("sched: stopped")
	}
	log := s.log
	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		start := time.Now()
		fn()
		if d := time.Since(start); d > interval {
			log.Warn("job overran its interval", logx.String("job", name), logx.Duration("took", d))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sched: %s: %w", name, err)
	}
	return &Job{svc: s, id: id}, nil
}

// Stop halts the executor and waits for in-flight jobs to finish.
// Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	c := s.c
	s.mu.Unlock()

	<-c.Stop().Done()
}

// cronLogger adapts logx to cron.Logger so the Recover chain can report
// panicking jobs through our sinks.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	fields := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		fields = append(fields, logx.Any(k, kv[i+1]))
	}
	return fields
}
