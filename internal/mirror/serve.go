package mirror

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Serve exposes the mirror directory over HTTP so other machines can
// use it as their index source. It blocks until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context, path, addr string) error {
	info, err := m.Stat(ctx, path)
	if err != nil {
		return err
	}
	if !info.Initialized {
		return ErrNotInitialized
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           http.FileServer(http.Dir(path)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	m.logger.Info("serving mirror", "path", path, "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
