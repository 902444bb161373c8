package api

import (
    "context"
    "crypto/subtle"
    "net/http"
    "strings"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "spendlimit/internal/limits"
    "spendlimit/internal/store"
)

// LimitWriter seeds provider limits for administrators.
type LimitWriter interface {
    UpsertLimit(ctx context.Context, input store.UpsertLimitInput) (store.ProviderLimit, error)
}

type Server struct {
    limits    *limits.Service
    admin     LimitWriter
    authToken string
    providers map[string]struct{}
    logger    *zap.Logger
}

// NewServer builds the HTTP surface over svc. When providers is non-empty,
// only those provider names are accepted.
func NewServer(svc *limits.Service, admin LimitWriter, authToken string, providers []string, logger *zap.Logger) *Server {
    if logger == nil {
        logger = zap.NewNop()
    }
    known := make(map[string]struct{}, len(providers))
    for _, p := range providers {
        p = normalizeProvider(p)
        if p != "" {
            known[p] = struct{}{}
        }
    }
    return &Server{
        limits:    svc,
        admin:     admin,
        authToken: authToken,
        providers: known,
        logger:    logger,
    }
}

func (s *Server) Routes() http.Handler {
    r := chi.NewRouter()
    r.Use(middleware.Recoverer)
    r.Use(s.requestLogger)

    r.Handle("/metrics", promhttp.Handler())

    r.Group(func(r chi.Router) {
        r.Use(s.authMiddleware)
        r.Post("/v1/limits/check", s.handleCheckLimit)
        r.Get("/v1/limits", s.handleListLimits)
        r.Put("/v1/limits", s.handleUpsertLimit)
        r.Post("/v1/movements", s.handleRecordMovement)
        r.Get("/v1/usage", s.handleUsage)
    })

    r.NotFound(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusNotFound, "not_found")
    })
    r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
        writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
    })
    return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        token := extractBearerToken(r.Header.Get("Authorization"))
        if !secureCompare(token, s.authToken) {
            writeError(w, http.StatusUnauthorized, "unauthorized")
            return
        }
        next.ServeHTTP(w, r)
    })
}

func extractBearerToken(header string) string {
    if header == "" {
        return ""
    }
    parts := strings.SplitN(header, " ", 2)
    if len(parts) != 2 {
        return ""
    }
    if !strings.EqualFold(parts[0], "Bearer") {
        return ""
    }
    return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
    if len(a) != len(b) {
        return false
    }
    return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
