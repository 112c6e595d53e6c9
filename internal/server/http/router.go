// Package http is the JSON-over-HTTP transport of the KeyAuth server. It maps
// requests onto the user, license and export services and their errors onto
// status codes.
package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/api"
	"github.com/dmitrijs2005/keyauth/internal/logging"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Exporter uploads a license snapshot on behalf of caller.
type Exporter interface {
	Export(ctx context.Context, caller *models.User) (*services.ExportResult, error)
}

type Handler struct {
	users    *services.UserService
	licenses *services.LicenseService
	exports  Exporter
	logger   logging.Logger
	validate *validator.Validate
}

func NewHandler(us *services.UserService, ls *services.LicenseService, es Exporter, l logging.Logger) *Handler {
	if l == nil {
		l = logging.Nop{}
	}
	return &Handler{
		users:    us,
		licenses: ls,
		exports:  es,
		logger:   l.With("module", "http"),
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RouterOptions carries the optional parts of the router.
type RouterOptions struct {
	// RequestTimeout cancels the request context after the given duration.
	// Zero disables it.
	RequestTimeout time.Duration
	Observer       RequestObserver
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware(opts.Observer))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get(api.PathRoot, h.root)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, api.PathMetrics, opts.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.With(h.authMiddleware).Get("/me", h.me)
	})

	r.Route("/api/license", func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Post("/activate", h.activate)
		r.Post("/validate", h.validateLicense)
		r.Get("/status", h.status)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Use(adminMiddleware)
		r.Get("/users", h.listUsers)
		r.Post("/generate-key", h.generateKey)
		r.Get("/licenses", h.listLicenses)
		r.Post("/revoke-license/{id}", h.revokeLicense)
		r.Post("/extend-license/{id}", h.extendLicense)
		r.Post("/export-licenses", h.exportLicenses)
	})

	return r
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, api.MessageResponse{Message: "KeyAuth API is running"})
}
