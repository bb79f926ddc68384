package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/monshunter/ohmyremote/pkg/log"
)

// GracefulShutdownHandler cancels the command context on SIGINT or SIGTERM
// and releases registered resources such as open SSH connections
type GracefulShutdownHandler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	cleanups []func() error
	exitFunc func(int)
}

// shutdown is the handler of the running command, nil outside Run
var shutdown *GracefulShutdownHandler

// onShutdown registers fn with the running command's handler
func onShutdown(fn func() error) {
	if shutdown != nil {
		shutdown.AddCleanup(fn)
	}
}

// NewGracefulShutdownHandler creates a new graceful shutdown handler
func NewGracefulShutdownHandler() *GracefulShutdownHandler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &GracefulShutdownHandler{
		ctx:      ctx,
		cancel:   cancel,
		exitFunc: os.Exit,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go handler.handleSignals(sigChan)

	return handler
}

// AddCleanup registers fn to run on shutdown, in reverse order of
// registration
func (h *GracefulShutdownHandler) AddCleanup(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

// Context returns the context that will be cancelled on shutdown
func (h *GracefulShutdownHandler) Context() context.Context {
	return h.ctx
}

// Close runs the cleanups and cancels the context
func (h *GracefulShutdownHandler) Close() {
	h.cleanup()
	h.cancel()
}

// SetExitFunc sets a custom exit function (useful for testing)
func (h *GracefulShutdownHandler) SetExitFunc(exitFunc func(int)) {
	h.exitFunc = exitFunc
}

func (h *GracefulShutdownHandler) cleanup() {
	h.mu.Lock()
	cleanups := h.cleanups
	h.cleanups = nil
	h.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i](); err != nil {
			log.Errorf("Error during graceful shutdown: %v", err)
		}
	}
}

func (h *GracefulShutdownHandler) handleSignals(sigChan chan os.Signal) {
	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
	case <-h.ctx.Done():
		signal.Stop(sigChan)
		return
	}

	h.cancel()
	h.cleanup()
	h.exitFunc(130)
}
