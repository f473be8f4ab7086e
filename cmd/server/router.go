package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/examhive/examhive-api/internal/api"
	apiMiddleware "github.com/examhive/examhive-api/internal/api/middleware"
)

// setupRouter configures all routes and middleware. Submission and
// polling are open to the quiz platform; the artifact browser endpoints
// require an admin bearer token.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	generationHandler := api.NewGenerationHandler(app.dispatcher, app.config.Storage.UploadDir)
	statusHandler := api.NewStatusHandler(app.status)
	filesHandler := api.NewFilesHandler(app.artifacts)
	healthHandler := api.NewHealthHandler(app.generator)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.verifier)

	r.Post("/generate-exam", generationHandler.GenerateExam)
	r.Post("/pdf-to-csv", generationHandler.PDFToCSV)
	r.Get("/job-status/{job_id}", statusHandler.GetJobStatus)
	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Get("/generated-files", filesHandler.ListFiles)
		r.Get("/download/{filename}", filesHandler.DownloadFile)
	})

	return r
}
