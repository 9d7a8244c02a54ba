// internal/server/handlers.go
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	apperrors "agentic-assistant/internal/common/errors"
	"agentic-assistant/internal/common/validation"
	"agentic-assistant/internal/models"
)

const (
	healthCheckTimeout = 2 * time.Second
	multipartMemory    = 8 << 20
)

var formFields = []string{"text", "clarification_response", "previous_request_id", "session_id"}

// HandleProcess handles POST /api/process with a multipart form or a JSON body.
func (s *Server) HandleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(w, r)
	if err != nil {
		var stdErr *apperrors.StandardError
		if !errors.As(err, &stdErr) {
			stdErr = apperrors.NewValidationError(err.Error())
		}
		s.writeResponse(w, &models.Response{
			RequestID:    RequestIDFromContext(r.Context()),
			Status:       models.StatusFailed,
			ErrorCode:    string(stdErr.Code),
			ErrorMessage: stdErr.UserMessage(),
			Logs:         []string{},
			Timestamp:    time.Now().UTC(),
		})
		return
	}
	if req.SessionID == "" {
		req.SessionID = strings.TrimSpace(r.Header.Get("X-Session-ID"))
	}

	ctx := r.Context()
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	s.writeResponse(w, s.processor.Process(ctx, req))
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *models.Response) {
	status := http.StatusOK
	if resp.Status == models.StatusFailed {
		status = apperrors.HTTPStatus(apperrors.ErrorCode(resp.ErrorCode))
	}
	writeJSON(w, status, resp)
}

func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (*models.Request, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("invalid content type: %w", err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "multipart/form-data":
		return s.parseMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return fromForm(r.PostForm.Get)
	case "application/json":
		return parseJSON(r.Body)
	}
	return nil, apperrors.NewUnsupportedInputError(fmt.Errorf("content type %s", mediaType))
}

func (s *Server) parseMultipart(r *http.Request) (*models.Request, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewUnsupportedInputError(fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	req, err := fromForm(r.FormValue)
	if err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		return nil, fmt.Errorf("read file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	req.File = &models.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return req, nil
}

func fromForm(get func(string) string) (*models.Request, error) {
	fields := make(map[string]interface{}, len(formFields))
	for _, f := range formFields {
		fields[f] = get(f)
	}
	if res := validation.ValidateProcessRequest(fields); !res.Valid {
		return nil, apperrors.NewValidationError(res.Summary())
	}
	return &models.Request{
		Text:                  get("text"),
		ClarificationResponse: get("clarification_response"),
		PreviousRequestID:     get("previous_request_id"),
		SessionID:             get("session_id"),
	}, nil
}

func parseJSON(body io.Reader) (*models.Request, error) {
	var fields map[string]interface{}
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if res := validation.ValidateProcessRequest(fields); !res.Valid {
		return nil, apperrors.NewValidationError(res.Summary())
	}

	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}
	req := &models.Request{
		Text:                  str("text"),
		ClarificationResponse: str("clarification_response"),
		PreviousRequestID:     str("previous_request_id"),
		SessionID:             str("session_id"),
	}

	if encoded := str("file_base64"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apperrors.NewValidationError("file_base64 is not valid base64")
		}
		req.File = &models.File{Filename: str("file_name"), Data: data}
	}
	return req, nil
}

// HandleSessionCost handles GET /api/sessions/{id}/cost.
func (s *Server) HandleSessionCost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if res := validation.ValidateProcessRequest(map[string]interface{}{"session_id": sessionID}); !res.Valid || sessionID == "" {
		writeError(w, http.StatusBadRequest, string(apperrors.ErrCodeValidationFailed), "invalid session id")
		return
	}

	total, err := s.processor.SessionTotal(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("session total lookup failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		writeError(w, http.StatusServiceUnavailable, string(apperrors.ErrCodeCostCommitFailed), "cost ledger unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"total_cost": total,
	})
}

// HandleHealth handles GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	components := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			components[name] = "unavailable: " + err.Error()
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":     status,
		"version":    s.config.Version,
		"components": components,
		"uptime":     int64(time.Since(s.startedAt).Seconds()),
		"time":       time.Now().Format(time.RFC3339),
	})
}

// HandleReady handles GET /ready.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}
