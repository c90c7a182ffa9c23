package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/beekeep/internal/config"
	"github.com/sells-group/beekeep/internal/store"
)

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func TestResolvePort(t *testing.T) {
	c := &config.Config{Server: config.ServerConfig{Port: 8080}}
	assert.Equal(t, 8080, resolvePort(0, c))
	assert.Equal(t, 9090, resolvePort(9090, c))
}

func TestRunServer_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := newEnv(store.NewMemory(), config.ResolverConfig{})
	port := getFreePort(t)
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: buildRouter(env, config.ServerConfig{CORSOrigins: []string{"*"}}, config.MonitoringConfig{}),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runServer(ctx, srv) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	var ready bool
	for range 50 {
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			_ = resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, "ok", body["status"])

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
