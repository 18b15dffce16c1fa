// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/gridedit/internal/activity"
	"github.com/matthewbaird/gridedit/internal/contenttype"
	"github.com/matthewbaird/gridedit/internal/handler"
	"github.com/matthewbaird/gridedit/internal/logger"
	"github.com/matthewbaird/gridedit/internal/session"
	"github.com/matthewbaird/gridedit/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Port     int
	Registry *contenttype.Registry
	Docs     handler.DocumentLister
	Bulk     handler.BulkService
	Activity activity.Store
	Sessions *session.Manager
	Editor   wire.Backend
	Log      *logger.Logger
}

// NewRouter registers every route on a chi router.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.Recovery(cfg.Log))
	r.Use(handler.Logging(cfg.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	bh := handler.NewBulkEditorHandler(cfg.Bulk, cfg.Log)
	ah := handler.NewActivityHandler(cfg.Activity, cfg.Log)
	ws := wire.NewHandler(cfg.Sessions, cfg.Editor, cfg.Editor.Deps(), cfg.Log)

	r.Route("/bulk-editor", func(r chi.Router) {
		r.Post("/bulk-update", bh.BulkUpdate)
		r.Post("/get-populated", bh.GetPopulated)
		r.Get("/activity/{uid}/{documentId}", ah.GetDocumentActivity)
		r.Post("/activity/search", ah.SearchActivity)
		r.Get("/ws", ws.ServeHTTP)
	})
	// Plugin-relative mounts.
	r.Post("/bulk-update", bh.BulkUpdate)
	r.Post("/get-populated", bh.GetPopulated)

	ch := handler.NewContentManagerHandler(cfg.Registry, cfg.Docs, cfg.Log)
	r.Route("/content-manager", func(r chi.Router) {
		r.Get("/content-types", ch.ListContentTypes)
		r.Get("/content-types/{uid}", ch.GetContentType)
		r.Get("/collection-types/{uid}", ch.ListDocuments)
	})

	return r
}

// Run starts the HTTP server and shuts it down when ctx is done.
func Run(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			cfg.Log.Error("server shutdown", "error", err)
		}
	}()

	cfg.Log.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
