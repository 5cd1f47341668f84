package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Pawan459/url-shortener/internal/metrics"
	"github.com/Pawan459/url-shortener/internal/notify"
	"github.com/Pawan459/url-shortener/internal/sched"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

const (
	DefaultPollInterval = time.Second
	DefaultSendRate     = 200 // frames per second across all clients

	writeTimeout = 10 * time.Second
)

type Config struct {
	PollInterval time.Duration
	SendRate     int // outbound frames per second; <=0 uses the default
}

// Dispatcher tracks live client connections and drives periodic delivery.
type Dispatcher struct {
	cfg   Config
	store *notify.Store
	timer *sched.Service
	met   *metrics.Metrics
	log   logx.Logger

	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[string]*client

	mu      sync.Mutex
	tickJob *sched.Job
	started bool
	closed  bool

	runCtx  context.Context
	runStop context.CancelFunc

	wg sync.WaitGroup
}

// client is one live connection. Never persisted; created on connect,
// dropped on disconnect or replacement.
type client struct {
	id   string
	conn *websocket.Conn

	// gorilla/websocket panics on concurrent writes
	writeMu sync.Mutex

	closeOnce sync.Once
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// New wires a dispatcher to its store. timer and met may be nil.
func New(cfg Config, store *notify.Store, timer *sched.Service, met *metrics.Metrics, log logx.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = DefaultSendRate
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		timer:   timer,
		met:     met,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendRate),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[string]*client{},
		runCtx:  ctx,
		runStop: stop,
	}
}

// Start schedules the periodic delivery tick. Idempotent.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return nil
	}
	d.started = true
	if d.timer == nil {
		return nil
	}
	job, err := d.timer.Every("delivery-tick", d.cfg.PollInterval, d.Tick)
	if err != nil {
		return fmt.Errorf("dispatch: schedule tick: %w", err)
	}
	d.tickJob = job
	d.log.Info("dispatcher started", logx.Duration("poll_every", d.cfg.PollInterval))
	return nil
}

// QueueMessage is the application-facing entry point: a pass-through to the
// durable store. Delivery failures are never surfaced here; backoff retry is
// the recovery mechanism.
func (d *Dispatcher) QueueMessage(id, clientID string, payload any) error {
	return d.store.Add(id, clientID, payload)
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// the client. A connection without a clientId query parameter is rejected
// with a policy-violation close code and never registered.
func (d *Dispatcher) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.Debug("upgrade failed", logx.Err(err))
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "clientId query parameter required")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		_ = conn.Close()
		d.log.Debug("connection rejected: missing clientId", logx.String("remote", r.RemoteAddr))
		return
	}

	c := &client{id: clientID, conn: conn}

	// Last write wins: a reconnecting client silently replaces its old
	// mapping entry. The stale handle is not evicted here; its read loop
	// will fail on its own and skip deregistration (see removeClient).
	d.clientsMu.Lock()
	d.clients[clientID] = c
	n := len(d.clients)
	d.clientsMu.Unlock()
	if d.met != nil {
		d.met.ClientsConnected.Set(float64(n))
	}
	d.log.Info("client connected", logx.String("client", clientID), logx.Int("connected", n))

	greeting, _ := json.Marshal(envelope{Type: TypeClientID, ClientID: clientID})
	if err := c.write(greeting); err != nil {
		d.removeClient(c)
		c.close()
		return
	}

	d.wg.Add(1)
	go d.readLoop(c)
}

// readLoop consumes inbound frames until the connection dies.
func (d *Dispatcher) readLoop(c *client) {
	defer d.wg.Done()
	defer func() {
		d.removeClient(c)
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			d.log.Debug("client disconnected", logx.String("client", c.id), logx.Err(err))
			return
		}
		d.handleInbound(c, data)
	}
}

// handleInbound processes one client frame. Only well-formed ACKs have any
// effect; everything else is logged and dropped.
func (d *Dispatcher) handleInbound(c *client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.log.Debug("ignoring malformed frame", logx.String("client", c.id), logx.Err(err))
		return
	}
	if env.Type != TypeAck || env.ID == "" {
		d.log.Debug("ignoring unexpected frame", logx.String("client", c.id), logx.String("type", env.Type))
		return
	}
	d.store.Ack(env.ID)
}

// removeClient deregisters the connection, but only while it is still the
// registered handle for its clientId: a replaced connection's death must not
// evict its successor.
func (d *Dispatcher) removeClient(c *client) {
	d.clientsMu.Lock()
	if cur, ok := d.clients[c.id]; ok && cur == c {
		delete(d.clients, c.id)
	}
	n := len(d.clients)
	d.clientsMu.Unlock()
	if d.met != nil {
		d.met.ClientsConnected.Set(float64(n))
	}
}

func (d *Dispatcher) lookup(clientID string) (*client, bool) {
	d.clientsMu.RLock()
	defer d.clientsMu.RUnlock()
	c, ok := d.clients[clientID]
	return c, ok
}

// Tick attempts delivery of every due message exactly once. Normally
// driven by the scheduler; exposed so callers can force a delivery pass.
func (d *Dispatcher) Tick() {
	for _, m := range d.store.MessagesToSend() {
		if d.runCtx.Err() != nil {
			return
		}
		d.deliver(m)
	}
}

func (d *Dispatcher) deliver(m notify.Message) {
	c, ok := d.lookup(m.ClientID)
	if !ok {
		// Offline client: same backoff path as a transmission error.
		d.store.OnSendFailure(m.ID)
		if d.met != nil {
			d.met.SendFailures.WithLabelValues("offline").Inc()
		}
		return
	}

	if err := d.limiter.Wait(d.runCtx); err != nil {
		return // shutting down
	}

	frame, err := json.Marshal(envelope{Type: TypeDelivery, ID: m.ID, Payload: m.Payload})
	if err != nil {
		d.log.Error("delivery marshal failed", logx.String("id", m.ID), logx.Err(err))
		return
	}
	if err := c.write(frame); err != nil {
		d.store.OnSendFailure(m.ID)
		if d.met != nil {
			d.met.SendFailures.WithLabelValues("send_error").Inc()
		}
		d.log.Debug("send failed", logx.String("id", m.ID), logx.String("client", m.ClientID), logx.Err(err))
		// A broken pipe won't heal; drop the handle so the next tick takes
		// the offline path immediately.
		d.removeClient(c)
		c.close()
		return
	}
	if d.met != nil {
		d.met.DeliveriesSent.Inc()
	}
	// No ack here: the message stays pending until the client ACKs or the
	// purge discards it.
}

// Close stops the delivery tick, drops all connections, and closes the
// store. Idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	job := d.tickJob
	d.tickJob = nil
	d.mu.Unlock()

	if job != nil {
		job.Stop()
	}
	d.runStop()

	d.clientsMu.Lock()
	for id, c := range d.clients {
		c.close()
		delete(d.clients, id)
	}
	d.clientsMu.Unlock()

	d.wg.Wait()
	d.store.Close()
	d.log.Info("dispatcher stopped")
}
