package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
)

type Config struct {
	Debug      bool
	Server     Server
	Relay      Relay
	Webrtc     Webrtc
	Monitoring Monitoring
}

type Server struct {
	Address  string `default:":8000"`
	// PortRoll moves to the next free port when the address is taken.
	PortRoll bool
	Https    bool
	Tls      struct {
		Address    string `default:":443"`
		Domain     string
		HttpsKey   string
		HttpsCert  string
		// NoRedirect turns off the plain HTTP to HTTPS redirect server.
		NoRedirect bool
	}
	// StaticDir is served at /static/ when set.
	StaticDir      string
	AllowedOrigins []string `default:"[*]"`
	// ConnectRate limits websocket upgrades per second, 0 turns the limit off.
	ConnectRate  float64 `default:"20"`
	ConnectBurst int     `default:"40"`
	LockFile     string
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Relay struct {
	// Room is sent to every client, a random one is used when empty.
	Room      string
	RateLimit struct {
		Limit  int           `default:"50"`
		Window time.Duration `default:"10s"`
	}
	NameMaxLength int `default:"24"`
	Heartbeat     struct {
		Interval time.Duration `default:"2s"`
		MinMs    int           `default:"15"`
		MaxMs    int           `default:"60"`
	}
	// KeepSuperseded leaves the old transport open when a player id is taken over.
	KeepSuperseded bool
	SendQueue      int   `default:"64"`
	MaxMessageSize int64 `default:"65536"`
	WatchConfig    bool
}

type Webrtc struct {
	IceServers []IceServer
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

func (s IceServer) IsTurn() bool {
	return strings.HasPrefix(s.Urls, "turn:") || strings.HasPrefix(s.Urls, "turns:")
}

// ICEServers converts the list into the form clients expect in the room message.
func (w *Webrtc) ICEServers() []webrtc.ICEServer {
	if len(w.IceServers) == 0 {
		return nil
	}
	servers := make([]webrtc.ICEServer, 0, len(w.IceServers))
	for _, s := range w.IceServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{s.Urls},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

type Monitoring struct {
	Port             int `default:"6601"`
	URLPrefix        string
	MetricEnabled    bool `json:"metric_enabled"`
	ProfilingEnabled bool `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// Validate checks the values that can't be fixed with a fallback.
func (c *Config) Validate() error {
	var errs []error
	r := c.Relay
	if r.RateLimit.Limit < 0 {
		errs = append(errs, fmt.Errorf("relay.rateLimit.limit is negative: %v", r.RateLimit.Limit))
	}
	if r.Heartbeat.MinMs < 0 || r.Heartbeat.MaxMs < r.Heartbeat.MinMs {
		errs = append(errs, fmt.Errorf("relay.heartbeat range is invalid: [%v, %v]", r.Heartbeat.MinMs, r.Heartbeat.MaxMs))
	}
	for i, s := range c.Webrtc.IceServers {
		if s.Urls == "" {
			errs = append(errs, fmt.Errorf("webrtc.iceServers[%v] has no urls", i))
		}
		if s.IsTurn() && (s.Username == "" || s.Credential == "") {
			errs = append(errs, fmt.Errorf("webrtc.iceServers[%v] turn server needs credentials", i))
		}
	}
	return errors.Join(errs...)
}
