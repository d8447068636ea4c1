package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"yieldgate/native/auction"
	"yieldgate/native/factory"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// Server exposes the auction and loan lifecycle over HTTP JSON. Every
// mutating operation runs under a single mutex, matching the system's
// whole-operation atomicity model: the engines themselves hold no locks.
type Server struct {
	coordinator *factory.Coordinator
	auctions    *auction.Engine
	loans       *loan.Engine
	registry    *rights.Registry
	logger      *slog.Logger
	tokens      map[string]struct{}
	metrics     prometheus.Gatherer

	mu sync.Mutex
}

// NewServer wires the HTTP surface. tokens authorize mutating routes; an
// empty list disables auth. metrics may be nil to omit the /metrics route.
func NewServer(coordinator *factory.Coordinator, auctions *auction.Engine, loans *loan.Engine, registry *rights.Registry, logger *slog.Logger, tokens []string, metrics prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	tokenSet := make(map[string]struct{})
	for _, token := range tokens {
		trimmed := strings.TrimSpace(token)
		if trimmed != "" {
			tokenSet[trimmed] = struct{}{}
		}
	}
	return &Server{
		coordinator: coordinator,
		auctions:    auctions,
		loans:       loans,
		registry:    registry,
		logger:      logger,
		tokens:      tokenSet,
		metrics:     metrics,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/auctions/{id}", s.handleGetAuction)
		v1.Get("/loans/{id}", s.handleGetLoan)
		v1.Get("/refunds/{address}", s.handleGetRefund)

		v1.Group(func(mut chi.Router) {
			mut.Use(s.authorize)
			mut.Post("/listings", s.handleCreateListing)
			mut.Post("/auctions/{id}/bids", s.handleBid)
			mut.Post("/auctions/{id}/finalize", s.handleFinalize)
			mut.Post("/refunds/claim", s.handleClaimFunds)
			mut.Post("/loans/{id}/repay", s.handleRepay)
			mut.Post("/loans/{id}/repay-yield", s.handleRepayYield)
			mut.Post("/loans/{id}/withdraw", s.handleWithdraw)
			mut.Post("/loans/{id}/reclaim", s.handleReclaim)
			mut.Post("/rights/{id}/transfer", s.handleTransferRights)
		})
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokens) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if _, ok := s.tokens[token]; !ok || header == token {
			s.writeError(w, r, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", message, "requestId", r.Context().Value(requestIDKey))
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, statusForError(err), err.Error())
}

func decodeJSON(r *http.Request, into any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}
