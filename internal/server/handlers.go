package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/retire"
	"github.com/Ririin-28/IS-RPT-SAES-sub003/internal/schema"
)

type retireRequest struct {
	UserIDs []int64 `json:"userIds"`
	Reason  string  `json:"reason"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRetire(c *gin.Context) {
	req, ok := s.bindRetireRequest(c)
	if !ok {
		return
	}

	result, err := s.retirer.Retire(c.Request.Context(), req.UserIDs, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDryRun(c *gin.Context) {
	req, ok := s.bindRetireRequest(c)
	if !ok {
		return
	}

	report, err := s.retirer.DryRun(c.Request.Context(), req.UserIDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// bindRetireRequest parses and sanitizes the request body. Non-positive and
// duplicate ids are dropped here so malformed frontend payloads never reach
// the engine; a batch with nothing left is a client error.
func (s *Server) bindRetireRequest(c *gin.Context) (*retireRequest, bool) {
	var req retireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return nil, false
	}

	seen := make(map[int64]bool, len(req.UserIDs))
	var ids []int64
	for _, id := range req.UserIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "no valid account ids provided"})
		return nil, false
	}
	req.UserIDs = ids
	return &req, true
}

// writeError maps engine errors onto HTTP statuses: precondition failures
// about the deployment's schema are 503 (nothing the caller can change),
// input problems are 400, and transient failures are retryable 500s.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, retire.ErrNoArchiveStorage), errors.Is(err, schema.ErrTableNotFound):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.Is(err, retire.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case retire.IsTransient(err):
		s.logger.Errorf("Retirement failed (transient): %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "retirement failed; batch rolled back", Retryable: true})
	default:
		s.logger.Errorf("Retirement failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
