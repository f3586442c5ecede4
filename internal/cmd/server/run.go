package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/rzbill/taskboard/internal/config"
	"github.com/rzbill/taskboard/internal/runtime"
	grpcserver "github.com/rzbill/taskboard/internal/server/grpc"
	httpserver "github.com/rzbill/taskboard/internal/server/http"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
	logpkg "github.com/rzbill/taskboard/pkg/log"
)

// Options configures Run. Empty addresses fall back to Config.Relay.
type Options struct {
	GRPCAddr string
	HTTPAddr string
	Config   cfgpkg.Config
	Logger   logpkg.Logger
	// Ready, when set, is called once both listeners are being served.
	Ready func()
}

// Run starts the relay's gRPC and HTTP servers plus the retention loop and
// blocks until ctx is cancelled or a server fails to start.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.Logger
	if logger == nil {
		procLogger, err := logpkg.ApplyConfig(&logpkg.Config{Level: opts.Config.Log.Level, Format: opts.Config.Log.Format})
		if err != nil {
			return err
		}
		logger = procLogger
	}
	if opts.GRPCAddr == "" {
		opts.GRPCAddr = opts.Config.Relay.GRPCAddr
	}
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = opts.Config.Relay.HTTPAddr
	}

	rt, err := runtime.Open(runtime.Options{Config: opts.Config.Relay})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting relay",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Int("retain_entries", opts.Config.Relay.RetainEntries),
		logpkg.Duration("trim_interval", opts.Config.Relay.TrimInterval),
	)

	svc := channelsvc.New(rt, logger)
	gsrv := grpcserver.New(rt, svc, logger)
	hsrv := httpserver.New(rt, svc, logger)

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
			logger.Error("grpc server failed", logpkg.Err(err))
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server failed", logpkg.Err(err))
			errCh <- err
		}
	}()
	go func() {
		defer wg.Done()
		svc.RunRetention(sctx)
	}()
	if opts.Ready != nil {
		opts.Ready()
	}

	var runErr error
	select {
	case <-sctx.Done():
	case runErr = <-errCh:
		stop()
	}
	// stop servers before the runtime closes the store
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	logger.Info("relay stopped")
	return runErr
}
