// Package coordinator relays voice chat signaling between game and web clients.
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teamvoice/relay/pkg/admin"
	"github.com/teamvoice/relay/pkg/config"
	"github.com/teamvoice/relay/pkg/logger"
	"github.com/teamvoice/relay/pkg/monitoring"
	"github.com/teamvoice/relay/pkg/network/httpx"
	"github.com/teamvoice/relay/pkg/network/websocket"
	"github.com/teamvoice/relay/pkg/player"
	"github.com/teamvoice/relay/pkg/service"
	"golang.org/x/time/rate"
)

type Coordinator struct {
	conf     config.Config
	room     string
	settings atomic.Pointer[Settings]

	players *player.Registry
	hub     *Hub
	relay   *Relay
	metrics *Metrics
	reg     *prometheus.Registry
	connect *rate.Limiter

	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup

	services service.Group
	log      *logger.Logger
}

// New wires the relay together.
// The relay metrics go to the reg, which is also exposed by the monitoring server.
func New(conf config.Config, log *logger.Logger, reg *prometheus.Registry) (*Coordinator, error) {
	room := conf.Relay.Room
	if room == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("room id: %w", err)
		}
		room = id.String()
	}

	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := NewMetrics(reg)
	players := player.NewRegistry(conf.Relay.NameMaxLength)
	hub := NewHub(players, metrics, log)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		conf:    conf,
		room:    room,
		players: players,
		hub:     hub,
		relay:   NewRelay(hub, log),
		metrics: metrics,
		reg:     reg,
		connect: newConnectLimiter(conf.Server),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}
	c.settings.Store(c.settingsFrom(conf))
	log.Info().Str("room", room).Msg("relay room")
	return c, nil
}

func newConnectLimiter(conf config.Server) *rate.Limiter {
	if conf.ConnectRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := conf.ConnectBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(conf.ConnectRate), burst)
}

func (c *Coordinator) settingsFrom(conf config.Config) *Settings {
	r := conf.Relay
	return &Settings{
		Room:              c.room,
		Ice:               conf.Webrtc.ICEServers(),
		RateLimit:         r.RateLimit.Limit,
		RateWindow:        r.RateLimit.Window,
		HeartbeatInterval: r.Heartbeat.Interval,
		HeartbeatMinMs:    r.Heartbeat.MinMs,
		HeartbeatMaxMs:    r.Heartbeat.MaxMs,
		KeepSuperseded:    r.KeepSuperseded,
	}
}

func (c *Coordinator) Room() string              { return c.room }
func (c *Coordinator) Hub() *Hub                 { return c.hub }
func (c *Coordinator) Settings() Settings        { return *c.settings.Load() }
func (c *Coordinator) Players() *player.Registry { return c.players }

// Reload swaps the rate limit and the name cap, the ICE list and the heartbeat.
// Running sessions keep what they were created with.
func (c *Coordinator) Reload(conf config.Config) {
	c.settings.Store(c.settingsFrom(conf))
	c.players.SetNameMaxLength(conf.Relay.NameMaxLength)
	c.log.Info().
		Int("limit", conf.Relay.RateLimit.Limit).
		Dur("window", conf.Relay.RateLimit.Window).
		Int("name_max", c.players.NameMaxLength()).
		Msg("relay settings reloaded")
}

// Handler builds the HTTP routes of the relay.
func (c *Coordinator) Handler() http.Handler {
	if !c.conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/")
	api.Use(admin.CORS(c.conf.Server.AllowedOrigins))
	admin.New(c.players, c.room, c.hub.Broadcast, c.log).Mount(api)

	r.GET("/ws", c.throttle, c.handleWebsocket)

	if dir := c.conf.Server.StaticDir; dir != "" {
		r.Static("/static", dir)
	}
	return r
}

// throttle rejects websocket upgrades above the connect rate.
func (c *Coordinator) throttle(ctx *gin.Context) {
	if !c.connect.Allow() {
		c.log.Debug().Str("ip", ctx.ClientIP()).Str(logger.ReasonField, "connect rate").Msg("upgrade rejected")
		ctx.AbortWithStatus(http.StatusTooManyRequests)
		return
	}
	ctx.Next()
}

func (c *Coordinator) handleWebsocket(ctx *gin.Context) {
	select {
	case <-c.ctx.Done():
		ctx.AbortWithStatus(http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := websocket.Upgrade(ctx.Writer, ctx.Request, websocket.Options{
		MaxMessageSize: c.conf.Relay.MaxMessageSize,
		SendQueue:      c.conf.Relay.SendQueue,
		PingPong:       true,
		CheckOrigin:    c.checkOrigin,
	}, c.log)
	if err != nil {
		c.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	c.metrics.Connections.Inc()

	log := c.log.Extend(c.log.With().Str(logger.ConnField, conn.Id().Short()))
	log.Debug().Str("ip", ctx.ClientIP()).Msg("connected")

	c.sessions.Add(1)
	defer c.sessions.Done()
	NewSession(conn, c.hub, c.relay, c.Settings(), log).Run(c.ctx)
	conn.Wait()
}

func (c *Coordinator) checkOrigin(r *http.Request) bool {
	origins := c.conf.Server.AllowedOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(origins, origin)
}

// Start binds the servers and runs them in the background.
func (c *Coordinator) Start() error {
	server, err := httpx.NewServer(
		c.conf.Server.GetAddr(),
		func(*httpx.Server) http.Handler { return c.Handler() },
		httpx.WithServerConfig(c.conf.Server),
		httpx.WithLogger(c.log),
	)
	if err != nil {
		return fmt.Errorf("relay server: %w", err)
	}
	c.services.Add(server)

	if c.conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(c.conf.Monitoring, c.reg, c.log)
		if err != nil {
			return err
		}
		c.services.Add(mon)
	}

	c.services.Start()
	return nil
}

// Shutdown stops the servers and closes every session.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.cancel()
	err := c.services.Shutdown(ctx)

	done := make(chan struct{})
	go func() { c.sessions.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warn().Msg("sessions are still closing")
	}
	return err
}
