package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliaanaa/genekor/internal/domain"
	"github.com/iliaanaa/genekor/internal/middleware"
	"github.com/iliaanaa/genekor/internal/repository"
	"github.com/iliaanaa/genekor/pkg/hgvs"
)

const (
	healthCheckTimeout = 2 * time.Second
	maxTargetsPerCall  = 1000
)

// handleHealth runs every registered dependency check.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
	})
}

type listVariantsQuery struct {
	Gene         string `form:"gene"`
	Significance string `form:"significance"`
	Conflicted   string `form:"conflicted"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
}

// handleListVariants lists stored variants, optionally filtered.
func (s *Server) handleListVariants(c *gin.Context) {
	var q listVariantsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid query parameters", err)
		return
	}

	filter := repository.VariantFilter{
		Gene:   strings.TrimSpace(q.Gene),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.Significance != "" {
		sig, err := domain.ParseSignificance(q.Significance)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid significance", err)
			return
		}
		filter.Significance = sig
	}
	if q.Conflicted != "" {
		v, err := strconv.ParseBool(q.Conflicted)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "conflicted must be true or false", err)
			return
		}
		filter.Conflicted = &v
	}

	variants, err := s.variants.Query(c.Request.Context(), filter)
	if err != nil {
		s.respondStoreError(c, "failed to query variants", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(variants),
		"limit":    filter.Limit,
		"offset":   filter.Offset,
		"variants": variants,
	})
}

// handleGetVariant returns one variant by ClinVar VariationID.
func (s *Server) handleGetVariant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "variation id must be a positive integer", err)
		return
	}

	variant, err := s.variants.GetByVariationID(c.Request.Context(), id)
	if err != nil {
		s.respondStoreError(c, "variant not found", err)
		return
	}
	c.JSON(http.StatusOK, variant)
}

// handleRelease reports the ClinVar release the stored cohort came from.
func (s *Server) handleRelease(c *gin.Context) {
	release, err := s.variants.LatestRelease(c.Request.Context())
	if err != nil {
		s.respondStoreError(c, "no release ingested", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"release":       release.Tag(),
		"release_date":  release.Date.Format("2006-01-02"),
		"version":       release.Version,
		"downloaded_at": release.DownloadedAt,
	})
}

// TargetRequest describes one variant to evaluate.
type TargetRequest struct {
	Name         string `json:"name"`
	TranscriptID string `json:"transcript_id"`
	HGVSc        string `json:"hgvs_c"`
	HGVSp        string `json:"hgvs_p"`
	Significance string `json:"clinical_significance"`
}

// EvaluateRequest asks for evidence codes for targets of one gene. With no
// targets and Cohort set, the stored cohort is evaluated against itself.
type EvaluateRequest struct {
	Gene    string          `json:"gene" binding:"required"`
	Targets []TargetRequest `json:"targets"`
	Cohort  bool            `json:"cohort"`
}

// EvaluateResponse carries the evaluations in request order.
type EvaluateResponse struct {
	RunID       string              `json:"run_id,omitempty"`
	Gene        string              `json:"gene"`
	Release     string              `json:"release,omitempty"`
	Count       int                 `json:"count"`
	WithCodes   int                 `json:"with_codes"`
	Evaluations []domain.Evaluation `json:"evaluations"`
}

type validationResponse struct {
	*domain.APIError
	Errors []error `json:"errors"`
}

// handleEvaluate evaluates request targets against the stored cohort.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid request body", err)
		return
	}
	req.Gene = strings.TrimSpace(req.Gene)

	if err := s.validator.ValidateGeneSymbol(req.Gene); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "invalid gene", err)
		return
	}
	if len(req.Targets) == 0 && !req.Cohort {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "targets are required unless cohort is set", nil)
		return
	}
	if len(req.Targets) > maxTargetsPerCall {
		s.respondError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "too many targets", nil)
		return
	}

	targets, errs := s.buildTargets(req)
	if len(errs) > 0 {
		apiErr := domain.NewAPIError(domain.ErrCodeHGVSParsing, "invalid targets", "", c.GetString(middleware.CorrelationIDKey))
		c.AbortWithStatusJSON(http.StatusBadRequest, validationResponse{APIError: apiErr, Errors: errs})
		return
	}

	ctx := c.Request.Context()
	started := time.Now().UTC()
	evaluations, err := s.evaluator.EvaluateGene(ctx, req.Gene, targets)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.respondError(c, http.StatusGatewayTimeout, domain.ErrCodeRequestTimeout, "evaluation timed out", err)
			return
		}
		s.respondStoreError(c, "evaluation failed", err)
		return
	}
	if req.Cohort && len(evaluations) == 0 {
		s.respondError(c, http.StatusNotFound, domain.ErrCodeEmptyCohort, "no stored variants for gene", domain.ErrEmptyCohort)
		return
	}

	resp := EvaluateResponse{
		Gene:        req.Gene,
		Count:       len(evaluations),
		Evaluations: evaluations,
	}
	if rel, err := s.variants.LatestRelease(ctx); err == nil {
		resp.Release = rel.Tag()
	}
	for _, ev := range evaluations {
		if len(ev.Codes) > 0 {
			resp.WithCodes++
		}
	}
	resp.RunID = s.recordRun(ctx, &resp, started)

	c.JSON(http.StatusOK, resp)
}

// buildTargets normalizes request targets. Validation errors name the
// offending target by its index.
func (s *Server) buildTargets(req EvaluateRequest) ([]*domain.VariantRecord, []error) {
	var (
		targets []*domain.VariantRecord
		errs    []error
	)
	for i, t := range req.Targets {
		if verrs := s.validator.ValidateTarget(req.Gene, t.Name, t.HGVSc, t.HGVSp, t.TranscriptID); len(verrs) > 0 {
			for _, e := range verrs {
				var ve *domain.ValidationError
				if errors.As(e, &ve) {
					ve.Field = "targets[" + strconv.Itoa(i) + "]." + ve.Field
				}
				errs = append(errs, e)
			}
			continue
		}
		rec, err := hgvs.NewVariantRecord(domain.RawVariant{
			GeneSymbol:       req.Gene,
			Name:             t.Name,
			TranscriptID:     t.TranscriptID,
			NucleotideChange: t.HGVSc,
			ProteinChange:    t.HGVSp,
			SignificanceText: t.Significance,
		})
		if err != nil {
			errs = append(errs, domain.NewValidationError("targets["+strconv.Itoa(i)+"]", err.Error(), t.Name))
			continue
		}
		targets = append(targets, rec)
	}
	return targets, errs
}

// recordRun stores the evaluations when a recorder is configured. Failures are
// logged; the response is still served.
func (s *Server) recordRun(ctx context.Context, resp *EvaluateResponse, started time.Time) string {
	if s.runs == nil {
		return ""
	}
	run := &domain.EvaluationRun{
		ID:         uuid.New().String(),
		Release:    resp.Release,
		Gene:       resp.Gene,
		Targets:    resp.Count,
		WithCodes:  resp.WithCodes,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	fields := logrus.Fields{"run_id": run.ID, "gene": run.Gene}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("Failed to record evaluation run")
		return ""
	}
	if _, err := s.runs.SaveEvaluations(ctx, run.ID, resp.Evaluations); err != nil {
		s.logger.WithFields(fields).WithError(err).Warn("Failed to record evaluations")
	}
	return run.ID
}
