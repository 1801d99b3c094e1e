package httpx

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/teamvoice/relay/pkg/config"
	"github.com/teamvoice/relay/pkg/logger"
)

func TestServerRunShutdown(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", func(*Server) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") })
	}, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	if srv.GetProtocol() != "http" {
		t.Errorf("expected http, got %v", srv.GetProtocol())
	}
	srv.Run()

	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(srv.GetPort()))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("expected ok, got %v", string(body))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestServerPortRollFromConfig(t *testing.T) {
	busy, err := NewListener("127.0.0.1:0", false, logger.Nop())
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer func() { _ = busy.Close() }()

	var conf config.Server
	conf.Address = busy.Addr().String()
	handler := func(*Server) http.Handler { return http.NotFoundHandler() }

	if _, err := NewServer(conf.Address, handler, WithServerConfig(conf), WithLogger(logger.Nop())); err == nil {
		t.Fatalf("expected a busy address error without port roll")
	}

	conf.PortRoll = true
	srv, err := NewServer(conf.Address, handler, WithServerConfig(conf), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	defer func() { _ = srv.listener.Close() }()
	if srv.GetPort() == busy.GetPort() {
		t.Errorf("expected a port other than %v", busy.GetPort())
	}
}
