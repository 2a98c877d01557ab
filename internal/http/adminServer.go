package http

import (
	"context"
	"dedupstore/internal/api"
	"dedupstore/internal/files"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type AdminServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAdminRouter(fileService *files.FileService) http.Handler {
	adminHandler := api.NewAdminHandler(fileService)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(gzip)
	r.Get("/admin/files", adminHandler.ListFilesHandler)
	r.Get("/admin/audit", adminHandler.AuditHandler)
	r.Get("/admin/stats", adminHandler.StatsHandler)
	return r
}

func NewAdminServer(fileService *files.FileService, addr string) *AdminServer {
	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewAdminRouter(fileService),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *AdminServer) Start() error {
	log.Printf("Admin API started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
