package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/corelabs-io/lib-dbguard/dbguard/log"
	httppkg "github.com/corelabs-io/lib-dbguard/dbguard/net/http"
	"github.com/gofiber/fiber/v2"
	"google.golang.org/grpc"
)

// ErrNoServersConfigured indicates no servers were configured for the manager.
var ErrNoServersConfigured = errors.New("no servers configured: use WithHTTPServer() or WithGRPCServer()")

// ErrStartupHookFailed wraps a startup hook error that aborted server launch.
var ErrStartupHookFailed = errors.New("startup hook failed")

type namedHealthCheck struct {
	name  string
	check func(ctx context.Context) bool
}

// ServerManager handles the graceful startup and shutdown of HTTP and gRPC
// servers. It implements guardian.Host: startup hooks run before listeners
// launch, stop hooks run during shutdown, and registered health checks feed
// the health endpoint.
type ServerManager struct {
	httpServer         *fiber.App
	grpcServer         *grpc.Server
	logger             log.Logger
	httpAddress        string
	grpcAddress        string
	startHooks         []func(ctx context.Context) error
	stopHooks          []func(ctx context.Context) error
	healthChecks       []namedHealthCheck
	serversStarted     chan struct{}
	serversStartedOnce sync.Once
	shutdownChan       <-chan struct{}
	shutdownOnce       sync.Once
	shutdownTimeout    time.Duration
	startupErrors      chan error
}

// NewServerManager creates a new instance of ServerManager. If logger is
// nil, a no-op logger is used so the lifecycle is nil-safe throughout.
func NewServerManager(logger log.Logger) *ServerManager {
	if logger == nil {
		logger = log.NewNop()
	}

	return &ServerManager{
		logger:          logger,
		serversStarted:  make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startupErrors:   make(chan error, 2),
	}
}

// WithHTTPServer configures the HTTP server for the ServerManager.
func (sm *ServerManager) WithHTTPServer(app *fiber.App, address string) *ServerManager {
	sm.httpServer = app
	sm.httpAddress = address

	return sm
}

// WithGRPCServer configures the gRPC server for the ServerManager.
func (sm *ServerManager) WithGRPCServer(server *grpc.Server, address string) *ServerManager {
	sm.grpcServer = server
	sm.grpcAddress = address

	return sm
}

// WithShutdownChannel configures a custom shutdown channel. This allows
// tests to trigger shutdown deterministically instead of relying on OS
// signals.
func (sm *ServerManager) WithShutdownChannel(ch <-chan struct{}) *ServerManager {
	sm.shutdownChan = ch

	return sm
}

// WithShutdownTimeout configures the maximum duration to wait for gRPC
// GracefulStop before forcing a hard stop. Defaults to 30 seconds.
func (sm *ServerManager) WithShutdownTimeout(d time.Duration) *ServerManager {
	sm.shutdownTimeout = d

	return sm
}

// OnStart registers a hook invoked, in registration order, before listeners
// launch. A hook error aborts startup. Implements guardian.Host.
func (sm *ServerManager) OnStart(hook func(ctx context.Context) error) {
	sm.startHooks = append(sm.startHooks, hook)
}

// OnStop registers a hook invoked during graceful shutdown. Implements
// guardian.Host.
func (sm *ServerManager) OnStop(hook func(ctx context.Context) error) {
	sm.stopHooks = append(sm.stopHooks, hook)
}

// AddHealthCheck registers a named health predicate. Implements
// guardian.Host.
func (sm *ServerManager) AddHealthCheck(name string, check func(ctx context.Context) bool) {
	sm.healthChecks = append(sm.healthChecks, namedHealthCheck{name: name, check: check})
}

// HealthHandler builds a Fiber handler over every registered health check.
// Mount it on the managed HTTP server, typically at /health.
func (sm *ServerManager) HealthHandler() fiber.Handler {
	checks := make([]httppkg.DependencyCheck, 0, len(sm.healthChecks))
	for _, hc := range sm.healthChecks {
		checks = append(checks, httppkg.DependencyCheck{Name: hc.name, HealthCheck: hc.check})
	}

	return httppkg.HealthWithDependencies(checks...)
}

// ServersStarted returns a channel closed when server goroutines have been
// launched. This signals that goroutines were spawned, not that sockets are
// bound; useful for tests to coordinate shutdown timing.
func (sm *ServerManager) ServersStarted() <-chan struct{} {
	return sm.serversStarted
}

func (sm *ServerManager) validateConfiguration() error {
	if sm.httpServer == nil && sm.grpcServer == nil {
		return ErrNoServersConfigured
	}

	return nil
}

// initServers validates configuration, runs startup hooks, and starts
// servers without blocking.
func (sm *ServerManager) initServers() error {
	if sm.serversStarted == nil {
		sm.serversStarted = make(chan struct{})
	}

	if err := sm.validateConfiguration(); err != nil {
		return err
	}

	if err := sm.runStartHooks(context.Background()); err != nil {
		return err
	}

	sm.startServers()

	return nil
}

// StartWithGracefulShutdown validates configuration, runs startup hooks,
// starts all configured servers, and blocks until a termination signal is
// received, the shutdown channel is closed, or a server fails to start.
func (sm *ServerManager) StartWithGracefulShutdown() error {
	if err := sm.initServers(); err != nil {
		sm.logErrorf("Startup failed: %v", err)

		return err
	}

	sm.handleShutdown()

	return nil
}

func (sm *ServerManager) runStartHooks(ctx context.Context) error {
	for _, hook := range sm.startHooks {
		if hook == nil {
			continue
		}

		if err := hook(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrStartupHookFailed, err)
		}
	}

	return nil
}

// startServers starts all configured servers in separate goroutines.
func (sm *ServerManager) startServers() {
	started := 0

	if sm.httpServer != nil {
		go func() {
			sm.logInfof("Starting HTTP server on %s", sm.httpAddress)

			if err := sm.httpServer.Listen(sm.httpAddress); err != nil {
				sm.logErrorf("HTTP server error: %v", err)

				select {
				case sm.startupErrors <- fmt.Errorf("HTTP server: %w", err):
				default:
				}
			}
		}()

		started++
	}

	if sm.grpcServer != nil {
		go func() {
			sm.logInfof("Starting gRPC server on %s", sm.grpcAddress)

			listener, err := net.Listen("tcp", sm.grpcAddress)
			if err != nil {
				sm.logErrorf("Failed to listen on gRPC address: %v", err)

				select {
				case sm.startupErrors <- fmt.Errorf("gRPC listen: %w", err):
				default:
				}

				return
			}

			if err := sm.grpcServer.Serve(listener); err != nil {
				sm.logErrorf("gRPC server error: %v", err)

				select {
				case sm.startupErrors <- fmt.Errorf("gRPC serve: %w", err):
				default:
				}
			}
		}()

		started++
	}

	sm.logInfof("Launched %d server goroutine(s)", started)

	// Signal that server goroutines have been launched (not that sockets are bound).
	sm.serversStartedOnce.Do(func() {
		close(sm.serversStarted)
	})
}

func (sm *ServerManager) logInfo(msg string) {
	if sm.logger != nil {
		sm.logger.Log(context.Background(), log.LevelInfo, msg)
	}
}

func (sm *ServerManager) logInfof(format string, args ...any) {
	if sm.logger != nil {
		sm.logger.Log(context.Background(), log.LevelInfo, fmt.Sprintf(format, args...))
	}
}

func (sm *ServerManager) logErrorf(format string, args ...any) {
	if sm.logger != nil {
		sm.logger.Log(context.Background(), log.LevelError, fmt.Sprintf(format, args...))
	}
}

// handleShutdown waits for a termination signal, a closed shutdown channel,
// or a server startup error, then executes the shutdown sequence.
func (sm *ServerManager) handleShutdown() {
	if sm.shutdownChan != nil {
		select {
		case <-sm.shutdownChan:
		case err := <-sm.startupErrors:
			sm.logErrorf("Server startup failed: %v", err)
		}
	} else {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)

		select {
		case <-c:
			signal.Stop(c)
		case err := <-sm.startupErrors:
			sm.logErrorf("Server startup failed: %v", err)
		}
	}

	sm.logInfo("Gracefully shutting down all servers...")

	sm.executeShutdown()
}

// executeShutdown performs the shutdown operations in order. Idempotent:
// only the first invocation executes the sequence.
func (sm *ServerManager) executeShutdown() {
	sm.shutdownOnce.Do(func() {
		// Non-blocking read: avoids a deadlock when shutdown is triggered
		// before startServers() completed.
		select {
		case <-sm.serversStarted:
		default:
			sm.logInfo("Shutdown initiated before servers were fully started.")
		}

		if sm.httpServer != nil {
			sm.logInfo("Shutting down HTTP server...")

			if err := sm.httpServer.Shutdown(); err != nil {
				sm.logErrorf("Error during HTTP server shutdown: %v", err)
			}
		}

		if sm.grpcServer != nil {
			sm.logInfo("Shutting down gRPC server...")

			done := make(chan struct{})

			go func() {
				sm.grpcServer.GracefulStop()
				close(done)
			}()

			select {
			case <-done:
				sm.logInfo("gRPC server stopped gracefully")
			case <-time.After(sm.shutdownTimeout):
				sm.logInfo("gRPC graceful stop timed out, forcing stop...")
				sm.grpcServer.Stop()
			}
		}

		// Stop hooks run after listeners stop so in-flight requests still
		// had their dependencies available.
		for _, hook := range sm.stopHooks {
			if hook == nil {
				continue
			}

			if err := hook(context.Background()); err != nil {
				sm.logErrorf("Stop hook error: %v", err)
			}
		}

		if sm.logger != nil {
			sm.logInfo("Syncing logger...")

			if err := sm.logger.Sync(context.Background()); err != nil {
				sm.logErrorf("Failed to sync logger: %v", err)
			}
		}

		sm.logInfo("Graceful shutdown completed")
	})
}
