package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/markbook-hub/markbook/internal/application/command"
	"github.com/markbook-hub/markbook/internal/application/query"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "markbook",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, http.StatusServiceUnavailable, "not_ready", status.Message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createSchemaRequest struct {
	SchoolID       string         `json:"school_id"`
	SubjectID      string         `json:"subject_id"`
	Type           string         `json:"type"`
	NodeType       string         `json:"node_type"`
	Kind           string         `json:"kind"`
	DefaultOptions map[string]any `json:"default_options,omitempty"`
}

func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	var req createSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.CreateSchemaHandler.Handle(r.Context(), command.CreateSchemaCommand{
		SchoolID:       req.SchoolID,
		SubjectID:      req.SubjectID,
		Type:           req.Type,
		NodeType:       req.NodeType,
		Kind:           req.Kind,
		DefaultOptions: req.DefaultOptions,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"schema_id": result.SchemaID.String(),
	})
}

type setOptionRequest struct {
	NodeID string `json:"node_id,omitempty"`
	Value  any    `json:"value"`
}

func (s *Server) handleSetOption(w http.ResponseWriter, r *http.Request) {
	var req setOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	err := s.deps.SetOptionHandler.Handle(r.Context(), command.SetOptionCommand{
		SchemaID: r.PathValue("id"),
		NodeID:   req.NodeID,
		Name:     r.PathValue("name"),
		Value:    req.Value,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type createAssessmentRequest struct {
	SchemaID  string `json:"schema_id"`
	StudentID string `json:"student_id"`
	NodeID    string `json:"node_id"`
}

func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	var req createAssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.CreateAssessmentHandler.Handle(r.Context(), command.CreateAssessmentCommand{
		SchemaID:  req.SchemaID,
		StudentID: req.StudentID,
		NodeID:    req.NodeID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"assessment_id": result.AssessmentID.String(),
		"created_at":    result.CreatedAt,
	})
}

func (s *Server) handleGetAssessmentState(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.GetAssessmentStateHandler.Handle(r.Context(), query.GetAssessmentStateQuery{
		AssessmentID: r.PathValue("id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

type recordAttemptRequest struct {
	State  string `json:"state,omitempty"`
	Rating *int   `json:"rating,omitempty"`
	Grade  string `json:"grade,omitempty"`
}

func (s *Server) handleRecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req recordAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	result, err := s.deps.RecordAttemptHandler.Handle(r.Context(), command.RecordAttemptCommand{
		AssessmentID: r.PathValue("id"),
		State:        req.State,
		Rating:       req.Rating,
		Grade:        req.Grade,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"attempt_id":     result.AttemptID.String(),
		"assessment_id":  result.AssessmentID.String(),
		"attempt_number": result.AttemptNumber,
		"recorded_at":    result.RecordedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.GetOrGenerateReportHandler.Handle(r.Context(), query.GetOrGenerateReportQuery{
		SchemaID: r.URL.Query().Get("schema_id"),
		NodeID:   r.URL.Query().Get("node_id"),
		ClassID:  r.URL.Query().Get("class_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reportResponse(rep))
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	prog, err := s.deps.GetOrGenerateProgressHandler.Handle(r.Context(), query.GetOrGenerateProgressQuery{
		SchemaID:  r.URL.Query().Get("schema_id"),
		StudentID: r.URL.Query().Get("student_id"),
		NodeID:    r.URL.Query().Get("node_id"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse(prog))
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type reportDTO struct {
	SchemaID         string      `json:"schema_id"`
	NodeID           string      `json:"node_id"`
	ClassID          string      `json:"class_id,omitempty"`
	Kind             string      `json:"kind"`
	Generation       int         `json:"generation"`
	GeneratedAt      time.Time   `json:"generated_at"`
	Candidates       []string    `json:"candidates"`
	Attempted        []string    `json:"attempted"`
	PercentAttempted float64     `json:"percent_attempted"`
	Stats            interface{} `json:"stats"`
}

func reportResponse(rep *report.Report) reportDTO {
	dto := reportDTO{
		SchemaID:         rep.SchemaID.String(),
		NodeID:           rep.NodeID.String(),
		Kind:             string(rep.Kind),
		Generation:       rep.Generation,
		GeneratedAt:      rep.GeneratedAt,
		Candidates:       stringIDs(rep.CandidateIDs),
		Attempted:        stringIDs(rep.AttemptedCandidateIDs),
		PercentAttempted: rep.PercentAttempted.Float64(),
		Stats:            rep.Stats,
	}
	if rep.ClassID != nil {
		dto.ClassID = rep.ClassID.String()
	}
	return dto
}

type progressDTO struct {
	SchemaID         string      `json:"schema_id"`
	StudentID        string      `json:"student_id"`
	NodeID           string      `json:"node_id"`
	Kind             string      `json:"kind"`
	Generation       int         `json:"generation"`
	GeneratedAt      time.Time   `json:"generated_at"`
	Assessments      []string    `json:"assessments"`
	Attempted        []string    `json:"attempted"`
	PercentAttempted float64     `json:"percent_attempted"`
	Stats            interface{} `json:"stats"`
}

func progressResponse(prog *progress.Progress) progressDTO {
	return progressDTO{
		SchemaID:         prog.SchemaID.String(),
		StudentID:        prog.StudentID.String(),
		NodeID:           prog.NodeID.String(),
		Kind:             string(prog.Kind),
		Generation:       prog.Generation,
		GeneratedAt:      prog.GeneratedAt,
		Assessments:      stringIDs(prog.AssessmentIDs),
		Attempted:        stringIDs(prog.AttemptedAssessmentIDs),
		PercentAttempted: prog.PercentAttempted.Float64(),
		Stats:            prog.Stats,
	}
}

func stringIDs(ids []shared.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
