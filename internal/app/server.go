package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vk/qsubgo/internal/ctxlog"
)

// Handler returns the read-only status API:
//
//	GET  /health
//	GET  /targets
//	GET  /targets/{name}
//	POST /refresh
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", a.healthHandler)
	r.Get("/targets", a.targetsHandler)
	r.Get("/targets/{name}", a.targetHandler)
	r.Post("/refresh", a.refreshHandler)
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) targetsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := a.rows(nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *App) targetHandler(w http.ResponseWriter, r *http.Request) {
	t, err := a.target(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, a.row(t))
}

func (a *App) refreshHandler(w http.ResponseWriter, r *http.Request) {
	ctx := ctxlog.WithLogger(r.Context(), a.logger)
	if err := a.backend.Refresh(ctx); err != nil {
		a.logger.Warn("Status refresh failed.", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	a.targetsHandler(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Serve runs the status API on port until ctx is cancelled.
func (a *App) Serve(ctx context.Context, port int) error {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost%s/targets", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down status server.")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}
