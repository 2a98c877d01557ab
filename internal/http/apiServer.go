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
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
)

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
	CORSOrigins    []string
}

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// NewAPIRouter builds the public routes. Downloads are not gzipped so
// Content-Length always matches the stored blob.
func NewAPIRouter(fileService *files.FileService, cfg APIConfig) http.Handler {
	apiHandlers := api.New(fileService, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", api.HealthHandler)

	r.Route("/v1/file", func(r chi.Router) {
		r.Post("/upload", apiHandlers.UploadHandler)
		r.Get("/download/{id}", apiHandlers.DownloadHandler)
		r.With(gzip).Get("/{id}", apiHandlers.LookupHandler)
	})

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length"},
	}).Handler(r)
}

func NewAPIServer(fileService *files.FileService, cfg APIConfig) *APIServer {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewAPIRouter(fileService, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
