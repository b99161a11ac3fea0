// Package mcp imports the tools of a Model Context Protocol server as
// capabilities.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/genui/pkg/logging"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("mcp client closed")

// Config describes how to reach an MCP server. Exactly one of Endpoint and
// Command must be set.
type Config struct {
	// Endpoint is the URL of a streamable HTTP server.
	Endpoint string
	// Command launches a server that speaks MCP on its stdio.
	Command string
	Args    []string
	// Env is appended to the current environment of the subprocess.
	Env []string
	// Prefix is prepended to every imported capability name, so that two
	// servers exposing the same tool name can share a registry.
	Prefix string
	// KeepAlive pings the server at this interval when positive.
	KeepAlive time.Duration
}

func (c Config) transport(httpClient *http.Client, logger *slog.Logger) (sdkmcp.Transport, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	command := strings.TrimSpace(c.Command)
	switch {
	case endpoint != "" && command != "":
		return nil, errors.New("mcp: set either an endpoint or a command, not both")
	case endpoint != "":
		t := &sdkmcp.StreamableClientTransport{Endpoint: endpoint}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case command != "":
		cmd := exec.Command(command, c.Args...)
		if len(c.Env) > 0 {
			cmd.Env = append(os.Environ(), c.Env...)
		}
		cmd.Stderr = stderrLogger{logger: logger}
		return &sdkmcp.CommandTransport{Command: cmd, TerminateDuration: 5 * time.Second}, nil
	default:
		return nil, errors.New("mcp: an endpoint or a command is required")
	}
}

// Option configures a Client.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithLogger sets the logger for session events and server output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient supplies the HTTP client of the streamable transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// Client is a live session with one MCP server.
type Client struct {
	session *sdkmcp.ClientSession
	logger  *slog.Logger
	prefix  string

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Connect dials the server described by cfg and completes the MCP handshake.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := options{logger: logging.WithComponent("mcp")}
	for _, opt := range opts {
		opt(&o)
	}
	transport, err := cfg.transport(o.httpClient, o.logger)
	if err != nil {
		return nil, err
	}
	return connect(ctx, transport, cfg, o.logger)
}

func connect(ctx context.Context, transport sdkmcp.Transport, cfg Config, logger *slog.Logger) (*Client, error) {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "genui", Version: "0.1.0"}, &sdkmcp.ClientOptions{
		LoggingMessageHandler: func(_ context.Context, req *sdkmcp.LoggingMessageRequest) {
			if req != nil && req.Params != nil {
				logger.Debug("mcp server log", "level", req.Params.Level, "data", req.Params.Data)
			}
		},
		KeepAlive: cfg.KeepAlive,
	})

	session, err := sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	c := &Client{
		session: session,
		logger:  logger,
		prefix:  cfg.Prefix,
		done:    make(chan struct{}),
	}
	if res := session.InitializeResult(); res != nil && res.ServerInfo != nil {
		logger.Info("mcp session established", "server", res.ServerInfo.Name, "version", res.ServerInfo.Version)
	}

	go c.watch()
	return c, nil
}

// Close ends the session. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.session.Close()
		close(c.done)
	})
	return c.closeErr
}

// Done is closed once the session has ended, for whatever reason.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) watch() {
	if err := c.session.Wait(); err != nil && !errors.Is(err, sdkmcp.ErrConnectionClosed) {
		c.logger.Warn("mcp session ended", "error", err)
	}
	_ = c.Close()
}

type stderrLogger struct {
	logger *slog.Logger
}

func (w stderrLogger) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debug("mcp server stderr", "line", line)
		}
	}
	return len(p), nil
}
