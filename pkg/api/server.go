// Package api exposes the escrow engine's use cases over a small JSON API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/mosaicswap/escrow-engine/pkg/escrow"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// Server serves the escrow JSON API.
type Server struct {
	port    string
	service *escrow.Service
	logger  logger.Logger
}

// NewServer creates the API server.
func NewServer(port string, service *escrow.Service, log logger.Logger) *Server {
	return &Server{
		port:    port,
		service: service,
		logger:  log,
	}
}

type cosignRequest struct {
	Address string `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleCreate starts an escrow-creation flow and reports its terminal
// outcome.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var terms models.EscrowTerms
	if err := json.NewDecoder(r.Body).Decode(&terms); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := s.service.Create(r.Context(), terms)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// handleCosign completes a pending escrow with the second party's signature.
func (s *Server) handleCosign(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	var req cosignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if !models.IsValidAddress(req.Address) {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}

	outcome, err := s.service.Cosign(r.Context(), req.Address, hash)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// handleSearch lists escrow records for a party.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !models.IsValidAddress(address) {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid address"))
		return
	}

	scope := models.ScopePending
	switch r.URL.Query().Get("scope") {
	case "", "pending":
	case "finalized":
		scope = models.ScopeFinalized
	default:
		s.writeError(w, http.StatusBadRequest, errors.New("scope must be 'pending' or 'finalized'"))
		return
	}

	records, err := s.service.Search(r.Context(), address, scope)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// Handler builds the API route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/escrows", s.handleCreate)
	mux.HandleFunc("POST /api/v1/escrows/{hash}/cosign", s.handleCosign)
	mux.HandleFunc("GET /api/v1/escrows", s.handleSearch)
	return mux
}

// Start runs the server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("API server shutdown: %v", err)
		}
	}()

	s.logger.Info("API server listening on :%s", s.port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func statusFor(err error) int {
	var resolution *models.AddressResolutionError
	switch {
	case errors.Is(err, models.ErrNodeUnreachable):
		return http.StatusServiceUnavailable
	case errors.As(err, &resolution):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}
