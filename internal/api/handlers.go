package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/transfer"
)

type connectRequest struct {
	Address string `json:"address"`
}

type transferRequest struct {
	Recipient *string `json:"recipient"`
	Amount    *string `json:"amount"`
}

type submitResponse struct {
	TxHash string `json:"txHash"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Dashboard())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	id, err := s.session.Connect(r.Context(), req.Address)
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.log.Error("Connect failed", "address", req.Address, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.log.Info("Session connected", "address", id.Address.Hex(), "request", requestID(r))
	writeJSON(w, http.StatusOK, s.session.Dashboard())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Disconnect(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Events())
}

func (s *Server) handleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.RefreshBalance(r.Context())
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transfer.Form())
}

func (s *Server) handleSetTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Recipient != nil {
		s.transfer.SetRecipient(*req.Recipient)
	}
	if req.Amount != nil {
		s.transfer.SetAmount(*req.Amount)
	}
	writeJSON(w, http.StatusOK, s.transfer.Form())
}

func (s *Server) handleSubmitTransfer(w http.ResponseWriter, r *http.Request) {
	// The transaction outlives a dropped client connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.SubmitTimeout)
	defer cancel()

	txHash, err := s.transfer.Submit(ctx)
	var subErr *transfer.SubmissionError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, submitResponse{TxHash: txHash.Hex()})
	case errors.Is(err, transfer.ErrAlreadySubmitting):
		writeError(w, http.StatusConflict, err)
	case transfer.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &subErr):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		var err error
		if owner, err = s.session.Owner(); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
	}

	nodes, err := s.nodes.Nodes(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleContinents(w http.ResponseWriter, r *http.Request) {
	continents, err := s.nodes.Continents(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, continents)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
