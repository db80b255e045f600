// Package api exposes the extraction review workflow over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evidia/srex/internal/completeness"
	"github.com/evidia/srex/internal/grade"
	"github.com/evidia/srex/internal/highlight"
	"github.com/evidia/srex/internal/ledger"
	"github.com/evidia/srex/internal/model"
	"github.com/evidia/srex/internal/review"
	"github.com/evidia/srex/internal/store"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	store  store.Store
	ledger *ledger.Service
	review *review.Service
	grade  *grade.Service
}

// NewServer wires the services. Returns nil if st is nil.
func NewServer(st store.Store) *Server {
	if st == nil {
		return nil
	}
	return &Server{
		store:  st,
		ledger: ledger.NewService(st),
		review: review.NewService(st),
		grade:  grade.NewService(st),
	}
}

// Router builds the chi router with CORS for the review frontend.
func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/articles/{articleID}/extractions", s.handleListExtractions)

		r.Route("/extractions/{extractionID}", func(r chi.Router) {
			r.Get("/", s.handleGetExtraction)
			r.Get("/completeness", s.handleCompleteness)
			r.Get("/highlights", s.handleHighlights)
			r.Post("/corrections", s.handleSubmitCorrection)
			r.Get("/corrections", s.handleListCorrections)
			r.Put("/review-status", s.handleReviewStatus)
			r.Get("/review-progress", s.handleReviewProgress)
			r.Get("/grade", s.handleListGrades)
		})

		r.Route("/grade-assessments/{assessmentID}", func(r chi.Router) {
			r.Get("/", s.handleGetGrade)
			r.Put("/override", s.handleOverrideGrade)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	rec, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	articleID, ok := pathUUID(w, r, "articleID")
	if !ok {
		return
	}
	recs, err := s.store.ListExtractions(r.Context(), articleID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if recs == nil {
		recs = []model.ExtractionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleCompleteness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	rec, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeness.Compute(rec))
}

type pageHighlight struct {
	Page int                 `json:"page"`
	Rect highlight.PixelRect `json:"rect"`
}

// handleHighlights projects a field's source locations onto a page rendered
// at the client-supplied pixel size. Rects are recomputed on every call so a
// zoomed viewer just asks again with the new dimensions.
func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	q := r.URL.Query()
	fieldPath := q.Get("field_path")
	if fieldPath == "" {
		writeError(w, http.StatusBadRequest, "field_path is required")
		return
	}
	width, errW := strconv.ParseFloat(q.Get("width"), 64)
	height, errH := strconv.ParseFloat(q.Get("height"), 64)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		writeError(w, http.StatusBadRequest, "width and height must be positive numbers")
		return
	}

	rec, err := s.store.GetExtraction(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	f, ok := ledger.FieldAt(rec, fieldPath)
	if !ok {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}

	hs := []pageHighlight{}
	for _, loc := range f.SourceLocations {
		hs = append(hs, pageHighlight{
			Page: loc.Page,
			Rect: highlight.Map(loc, width, height),
		})
	}
	writeJSON(w, http.StatusOK, hs)
}

type correctionRequest struct {
	UserID         uuid.UUID            `json:"user_id"`
	FieldPath      string               `json:"field_path"`
	OriginalValue  *model.ValueEnvelope `json:"original_value,omitempty"`
	CorrectedValue *model.ValueEnvelope `json:"corrected_value"`
	CorrectionType model.CorrectionType `json:"correction_type,omitempty"`
	Rationale      string               `json:"rationale,omitempty"`
}

func (s *Server) handleSubmitCorrection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.ledger.Submit(r.Context(), ledger.SubmitRequest{
		ExtractionID:   id,
		UserID:         req.UserID,
		FieldPath:      req.FieldPath,
		OriginalValue:  req.OriginalValue,
		CorrectedValue: req.CorrectedValue,
		CorrectionType: req.CorrectionType,
		Rationale:      req.Rationale,
	})
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "extraction not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}

	var (
		cs  []model.Correction
		err error
	)
	if fieldPath := r.URL.Query().Get("field_path"); fieldPath != "" {
		cs, err = s.ledger.CorrectionsFor(r.Context(), id, fieldPath)
	} else {
		cs, err = s.ledger.History(r.Context(), id)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if cs == nil {
		cs = []model.Correction{}
	}
	writeJSON(w, http.StatusOK, cs)
}

type reviewRequest struct {
	FieldPath  string            `json:"field_path"`
	ReviewerID uuid.UUID         `json:"reviewer_id"`
	Status     model.ReviewState `json:"status,omitempty"` // empty means cycle
}

func (s *Server) handleReviewStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		rs  model.ReviewStatus
		err error
	)
	if req.Status == "" {
		rs, err = s.review.Cycle(r.Context(), id, req.FieldPath, req.ReviewerID)
	} else {
		rs, err = s.review.Set(r.Context(), id, req.FieldPath, req.Status, req.ReviewerID)
	}
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "extraction not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleReviewProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	p, err := s.review.ProgressFor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "extractionID")
	if !ok {
		return
	}
	as, err := s.grade.ForExtraction(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if as == nil {
		as = []model.GradeAssessment{}
	}
	writeJSON(w, http.StatusOK, as)
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	a, err := s.grade.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type overrideRequest struct {
	Domain     string             `json:"domain"`
	NewRating  model.DomainRating `json:"new_rating"`
	Reason     string             `json:"reason"`
	ReviewerID uuid.UUID          `json:"reviewer_id"`
}

func (s *Server) handleOverrideGrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "assessmentID")
	if !ok {
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := s.grade.Override(r.Context(), id, req.Domain, req.NewRating, req.Reason, req.ReviewerID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "assessment not found")
		} else {
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
