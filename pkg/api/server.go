// Package api exposes the wiki core over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ridgeline/intranet/pkg/activity"
	"github.com/ridgeline/intranet/pkg/blob"
	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/middleware"
	"github.com/ridgeline/intranet/pkg/observability"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// Server represents our API server
type Server struct {
	store       *wiki.Store
	recorder    *activity.Recorder
	blobs       *blob.Client // nil when blob storage is disabled
	router      *mux.Router
	logger      *observability.Logger
	metrics     *observability.Metrics     // nil when metrics are disabled
	otelMetrics *observability.OTelMetrics // nil unless OTLP export is on
}

// NewServer creates a new API server
func NewServer(store *wiki.Store, recorder *activity.Recorder, blobs *blob.Client, logger *observability.Logger) *Server {
	s := &Server{
		store:    store,
		recorder: recorder,
		blobs:    blobs,
		router:   mux.NewRouter(),
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// SetMetrics attaches operation metrics. Optional.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// SetOTelMetrics attaches the OTLP domain counters. Optional.
func (s *Server) SetOTelMetrics(m *observability.OTelMetrics) {
	s.otelMetrics = m
}

// Router exposes the underlying router so the caller can attach the
// middleware chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Identity
	api.HandleFunc("/me", s.getMe).Methods("GET")

	// Page CRUD
	api.HandleFunc("/pages", s.createPage).Methods("POST")
	api.HandleFunc("/pages", s.listPages).Methods("GET")
	api.HandleFunc("/pages/slug/{slug}", s.getPageBySlug).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}", s.getPage).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}", s.updatePage).Methods("PATCH")
	api.HandleFunc("/pages/{id:[0-9]+}", s.deletePage).Methods("DELETE")
	api.HandleFunc("/pages/{id:[0-9]+}/status", s.setStatus).Methods("PUT")

	// Version history
	api.HandleFunc("/pages/{id:[0-9]+}/versions", s.listVersions).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}/versions/{versionId:[0-9]+}", s.getVersion).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}/diff", s.diffVersions).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}/revert", s.revertPage).Methods("POST")

	// Permissions
	api.HandleFunc("/pages/{id:[0-9]+}/permissions", s.listPermissions).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}/permissions", s.setPermission).Methods("PUT")
	api.HandleFunc("/pages/{id:[0-9]+}/permissions/{permissionId:[0-9]+}", s.removePermission).Methods("DELETE")

	// Attachments
	api.HandleFunc("/pages/{id:[0-9]+}/attachments", s.uploadAttachment).Methods("POST")
	api.HandleFunc("/pages/{id:[0-9]+}/attachments", s.listAttachments).Methods("GET")
	api.HandleFunc("/pages/{id:[0-9]+}/attachments/{attachmentId:[0-9]+}", s.downloadAttachment).Methods("GET")

	// Activity
	api.HandleFunc("/pages/{id:[0-9]+}/activity", s.listPageActivity).Methods("GET")
	api.HandleFunc("/activity", s.listActivity).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireUser extracts the resolved user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (*wiki.User, bool) {
	user := middleware.UserFrom(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return user, true
}

// countOperation records the outcome of a page operation when metrics are
// enabled.
func (s *Server) countOperation(ctx context.Context, operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordPageOperation(operation, err)
	}
	if s.otelMetrics != nil {
		s.otelMetrics.RecordPageOperation(ctx, operation, err)
	}
}

// countPageView records one page view on whichever sinks are attached.
func (s *Server) countPageView(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.PageViewsTotal.Inc()
	}
	if s.otelMetrics != nil {
		s.otelMetrics.RecordPageView(ctx)
	}
}

// countVersionCreated records one new page version.
func (s *Server) countVersionCreated(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.VersionsCreated.Inc()
	}
	if s.otelMetrics != nil {
		s.otelMetrics.RecordVersionCreated(ctx)
	}
}

// getMe handles GET /api/v1/me
func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, user)
}
