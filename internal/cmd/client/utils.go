package client

import (
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/channel/redischan"
	"github.com/rzbill/taskboard/internal/channel/relaychan"
	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/relayapi"
	logpkg "github.com/rzbill/taskboard/pkg/log"
)

// Env carries process-scoped state shared by every command. The root
// command fills it in before any subcommand runs.
type Env struct {
	Config      cfgpkg.Config
	Logger      logpkg.Logger
	Participant string
	// DialOptions are appended when dialing the relay.
	DialOptions []grpc.DialOption
}

func (e *Env) logger() logpkg.Logger {
	if e.Logger == nil {
		return logpkg.NewNopLogger()
	}
	return e.Logger
}

// withRelayClient dials addr and hands a relay client to fn.
func withRelayClient(env *Env, addr string, fn func(*relayapi.Client) error) error {
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, env.DialOptions...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(relayapi.NewClient(conn))
}

// openTransport builds the channel transport selected by kind. The returned
// closer releases transport-level resources after every handle is closed.
func openTransport(env *Env, kind string) (channel.Transport, func(), error) {
	cfg := env.Config.Transport
	logger := env.logger()
	switch kind {
	case cfgpkg.TransportMemory:
		hub := channel.NewHub()
		return hub.Participant(env.Participant), hub.Close, nil
	case cfgpkg.TransportRelay:
		tr, err := relaychan.Dial(cfg.RelayAddr, env.Participant, relaychan.Options{
			Filter:              cfg.RelayFilter,
			ReconnectMaxElapsed: cfg.ReconnectMaxElapsed,
			Logger:              logger,
			DialOptions:         env.DialOptions,
		})
		if err != nil {
			return nil, nil, err
		}
		return tr, func() { _ = tr.Close() }, nil
	case cfgpkg.TransportRedis:
		tr, err := redischan.Dial(cfg.RedisURL, env.Participant, logger)
		if err != nil {
			return nil, nil, err
		}
		return tr, func() { _ = tr.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q; use memory|relay|redis", kind)
	}
}

// syncWriter serializes writes from the board loop and the command loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *syncWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s, format, args...)
}

func printMessage(w io.Writer, m channel.Message) error {
	b, err := channel.Encode(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func background(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
