package web

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/orchid/internal/web/handlers"
	"github.com/kozaktomas/orchid/internal/web/middleware"
	"github.com/kozaktomas/orchid/internal/web/static"
)

func (s *Server) setupRoutes() {
	photosHandler := handlers.NewPhotosHandler(s.config, s.logger)
	uploadHandler := handlers.NewUploadHandler(s.config, s.logger)
	identifyHandler := handlers.NewIdentifyHandler(s.config, s.identifier, s.logger)
	identitiesHandler := handlers.NewIdentitiesHandler()
	libraryHandler := handlers.NewLibraryHandler(s.config, s.identifier, s.jobManager, s.logger)

	// Health check (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Static assets
	s.router.Get("/orchid.js", s.serveAsset("orchid.js"))

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.WithSession(s.sessionManager))

		// Pages
		r.Get("/", s.serveAsset("index.html"))
		r.Get("/photo/{id}/", s.serveAsset("index.html"))
		r.Get("/library/", s.serveAsset("index.html"))
		r.Get("/session_data.json", photosHandler.SessionData)

		// Page actions
		r.Post("/photo/{id}/identify/", identifyHandler.Identify)
		r.Get("/photo/{id}/identity/", identifyHandler.PhotoIdentities)
		r.Post("/photo/{id}/delete/", photosHandler.Delete)

		r.Route("/api/v1", func(r chi.Router) {
			// Photos
			r.Get("/photos", photosHandler.List)
			r.Post("/photos", uploadHandler.Upload)
			r.Get("/photos/{id}", photosHandler.Get)
			r.Delete("/photos/{id}", photosHandler.Delete)
			r.Get("/photos/{id}/image", photosHandler.Image)
			r.Get("/photos/{id}/thumb", photosHandler.Thumb)
			r.Get("/photos/{id}/similar", photosHandler.Similar)
			r.Post("/photos/{id}/identify", identifyHandler.Identify)
			r.Get("/photos/{id}/identities", identifyHandler.PhotoIdentities)

			// Identities
			r.Get("/identities", identitiesHandler.List)
			r.Get("/identities/{id}", identitiesHandler.Get)

			// Library (photos of the visitor session)
			r.Get("/library", photosHandler.Library)
			r.Post("/library/identify", libraryHandler.StartIdentify)
			r.Get("/library/identify/{jobId}", libraryHandler.Status)
			r.Get("/library/identify/{jobId}/events", libraryHandler.Events)
			r.Delete("/library/identify/{jobId}", libraryHandler.Cancel)
		})
	})
}

// serveAsset returns a handler writing an embedded file.
func (s *Server) serveAsset(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := static.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f) //nolint:errcheck // client went away
	}
}
