package server

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/f4ah6o/simplehttp-go/internal/config"
	"github.com/f4ah6o/simplehttp-go/internal/handler"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// echoHandler writes a fixed line and closes the connection.
type echoHandler struct{}

func (echoHandler) ServeConn(c net.Conn) {
	defer c.Close()
	io.WriteString(c, "ok\n")
}

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	return &config.Config{
		Host:     config.DefaultHost,
		Port:     port,
		Protocol: config.Protocol,
		Root:     t.TempDir(),
	}
}

// start runs srv.Serve in the background and closes the server on cleanup.
func start(t *testing.T, srv *Server) {
	t.Helper()
	srv.ErrorLog = log.New(io.Discard, "", 0)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Close()
		select {
		case err := <-done:
			require.ErrorIs(t, err, net.ErrClosed)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
}

var bannerPattern = regexp.MustCompile(`^Serving HTTP on 127\.0\.0\.1 port (\d+) \.\.\.\n$`)

func TestAnnounceReportsOSChosenPort(t *testing.T) {
	srv, err := Listen(context.Background(), testConfig(t, 0), echoHandler{})
	require.NoError(t, err)
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, srv.Announce(&buf))

	m := bannerPattern.FindStringSubmatch(buf.String())
	require.NotNil(t, m, "banner %q", buf.String())
	port, err := strconv.Atoi(m[1])
	require.NoError(t, err)
	require.Greater(t, port, 0)
	require.Equal(t, srv.Addr().Port, port)
}

func TestListenOnRequestedPort(t *testing.T) {
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := probe.Addr().(*net.TCPAddr).Port
	require.NoError(t, probe.Close())

	srv, err := Listen(context.Background(), testConfig(t, port), echoHandler{})
	require.NoError(t, err)
	defer srv.Close()

	require.Equal(t, port, srv.Addr().Port)
	require.Equal(t, "127.0.0.1", srv.Addr().IP.String())

	var buf bytes.Buffer
	require.NoError(t, srv.Announce(&buf))
	require.Equal(t, "Serving HTTP on 127.0.0.1 port "+strconv.Itoa(port)+" ...\n", buf.String())
}

func TestListenBindErrors(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	tests := []struct {
		name string
		port int
	}{
		{name: "Port in use", port: busy.Addr().(*net.TCPAddr).Port},
		{name: "Port out of range", port: 70000},
		{name: "Negative port", port: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := Listen(context.Background(), testConfig(t, tt.port), echoHandler{})
			if srv != nil {
				srv.Close()
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrBind), "err = %v", err)

			var be *BindError
			require.True(t, errors.As(err, &be))
			require.Contains(t, be.Addr, "127.0.0.1")
		})
	}
}

func TestServeHandsEachConnectionToHandler(t *testing.T) {
	srv, err := Listen(context.Background(), testConfig(t, 0), echoHandler{})
	require.NoError(t, err)
	start(t, srv)

	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		line, err := bufio.NewReader(c).ReadString('\n')
		c.Close()
		require.NoError(t, err)
		require.Equal(t, "ok\n", line)
	}
}

func TestServeFilesEndToEnd(t *testing.T) {
	cfg := testConfig(t, 0)
	content := []byte("served from disk\n")
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "f.txt"), content, 0o644))

	srv, err := Listen(context.Background(), cfg, handler.New(cfg, nil, nil))
	require.NoError(t, err)
	start(t, srv)

	base := "http://" + srv.Addr().String()
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(base + "/f.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "HTTP/1.0", resp.Proto)
	require.Equal(t, int64(len(content)), resp.ContentLength)
	require.Equal(t, content, body)

	resp, err = client.Get(base + "/does-not-exist")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotContains(t, string(body), "served from disk")
}

func TestConcurrentSlowClientDoesNotBlockOthers(t *testing.T) {
	cfg := testConfig(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Root, "f.txt"), []byte("x"), 0o644))

	srv, err := Listen(context.Background(), cfg, handler.New(cfg, nil, nil))
	require.NoError(t, err)
	start(t, srv)

	// A client that connects and never sends a request.
	idle, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer idle.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + srv.Addr().String() + "/f.txt")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
