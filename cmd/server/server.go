package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ringline/backend/config"
)

// uploadPath is the route whose body read and response outlast the server-wide timeouts.
const uploadPath = "/uploads"

func newHTTPServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: uploadDeadlines(handler, uploadPath,
			cfg.Recording.UploadReadTimeout,
			cfg.Recording.ProcessingBudget(),
			logger,
		),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeout) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
}

// uploadDeadlines replaces the connection deadlines for POST path: the body may
// take up to read to arrive, and the response may be written until read+process.
// A zero read leaves the body read unbounded.
func uploadDeadlines(next http.Handler, path string, read, process time.Duration, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == path {
			rc := http.NewResponseController(w)
			now := time.Now()
			var readBy time.Time
			if read > 0 {
				readBy = now.Add(read)
			}
			if err := rc.SetReadDeadline(readBy); err != nil {
				logger.Warn("extend upload read deadline failed", zap.Error(err))
			}
			if err := rc.SetWriteDeadline(now.Add(read + process)); err != nil {
				logger.Warn("extend upload write deadline failed", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}
