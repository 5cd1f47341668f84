// Package app assembles the service: config, logging, storage, the durable
// message store, websocket dispatch, and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Pawan459/url-shortener/internal/config"
	"github.com/Pawan459/url-shortener/internal/dispatch"
	"github.com/Pawan459/url-shortener/internal/metrics"
	"github.com/Pawan459/url-shortener/internal/notify"
	"github.com/Pawan459/url-shortener/internal/sched"
	"github.com/Pawan459/url-shortener/internal/server"
	"github.com/Pawan459/url-shortener/internal/shortener"
	"github.com/Pawan459/url-shortener/internal/storage"
	"github.com/Pawan459/url-shortener/internal/taskqueue"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	met   *metrics.Metrics
	queue *taskqueue.Queue
	timer *sched.Service
	links storage.Store
	msgs  *notify.Store
	disp  *dispatch.Dispatcher
	srv   *server.Server

	mu          sync.Mutex
	started     bool
	stopped     bool
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// New loads the config file and wires every component. Nothing is started.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	met := metrics.New()
	queue := taskqueue.New(log.With(logx.String("comp", "taskqueue")))
	timer := sched.New(log.With(logx.String("comp", "sched")))

	storageCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	links, err := storage.Open(storageCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	notifyCfg, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	msgs := notify.NewStore(notifyCfg, queue, timer, met, log.With(logx.String("comp", "notify")))

	dispatchCfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	disp := dispatch.New(dispatchCfg, msgs, timer, met, log.With(logx.String("comp", "dispatch")))

	short := shortener.New(links, met, log.With(logx.String("comp", "shortener")))

	serverCfg, err := mapServerConfig(cfg)
	if err != nil {
		return nil, err
	}
	srv := server.New(serverCfg, short, disp, met, log.With(logx.String("comp", "http")))

	return &App{
		mgr:    mgr,
		logSvc: logSvc,
		log:    log,
		met:    met,
		queue:  queue,
		timer:  timer,
		links:  links,
		msgs:   msgs,
		disp:   disp,
		srv:    srv,
	}, nil
}

// Start brings every component up and begins watching the config file.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	a.started = true

	if err := a.msgs.Init(); err != nil {
		return err
	}
	if err := a.disp.Start(); err != nil {
		return err
	}
	a.timer.Start()
	if err := a.srv.Start(); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	a.watchCancel = cancel
	a.watchDone = make(chan struct{})
	sub := a.mgr.Subscribe(1)
	go func() {
		defer close(a.watchDone)
		_ = a.mgr.Watch(watchCtx)
	}()
	go a.reloadLoop(watchCtx, sub)

	a.log.Info("service started", logx.String("addr", a.srv.Addr()))
	return nil
}

// reloadLoop applies hot-reloadable sections of published config revisions.
// Only logging takes effect live; other sections need a restart and are
// called out in the log.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.mgr.Unsubscribe(sub)
	prev := a.mgr.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("config changed",
				append(attrs, logx.String("sections", strings.Join(changed, ",")))...)

			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			for _, section := range changed {
				if section != "logging" {
					a.log.Warn("config section needs a restart to take effect",
						logx.String("section", section))
				}
			}
			prev = cfg
		}
	}
}

// Stop tears the service down in dependency order: HTTP first so no new
// work arrives, then dispatch and the store, then the write queue so
// pending snapshots drain.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped || !a.started {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	cancel := a.watchCancel
	done := a.watchDone
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	a.srv.Stop(ctx)
	a.disp.Close()
	a.timer.Stop()
	a.queue.Close()
	if err := a.links.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}
	a.log.Info("service stopped")
	_ = a.logSvc.Close()
	return nil
}
