package infra

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerWriteTimeoutCoversUpstream(t *testing.T) {
	s := NewHTTPServer(&Config{Port: "9000", UpstreamTimeout: 60 * time.Second, HTTPWriteTimeout: 15 * time.Second}, http.NotFoundHandler())
	if s.Addr() != ":9000" {
		t.Fatalf("addr = %q", s.Addr())
	}
	if s.server.WriteTimeout != 65*time.Second {
		t.Fatalf("write timeout = %v, want 65s", s.server.WriteTimeout)
	}
}

func TestHTTPServerServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := NewHTTPServer(&Config{UpstreamTimeout: time.Second}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
