package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/studentlink/concern-service/internal/api/dto"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/repository"
	"github.com/studentlink/concern-service/internal/service"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

// ConcernsHandler exposes the submission and update entrypoints that drive
// the workflow orchestrator.
type ConcernsHandler struct {
	workflow *service.WorkflowService
	assigner *service.AssignmentService
	concerns repository.ConcernRepository
}

// NewConcernsHandler constructs handler.
func NewConcernsHandler(workflow *service.WorkflowService, assigner *service.AssignmentService, concerns repository.ConcernRepository) *ConcernsHandler {
	return &ConcernsHandler{workflow: workflow, assigner: assigner, concerns: concerns}
}

// Submit POST /api/v1/concerns.
func (h *ConcernsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitConcernRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SubmitterID == "" || req.DepartmentID == "" || strings.TrimSpace(req.Subject) == "" {
		return apperrors.NewValidationError("submitter_id, department_id, subject required", nil)
	}

	concern, err := h.workflow.Submit(c.Context(), service.SubmitInput{
		SubmitterID:  req.SubmitterID,
		DepartmentID: req.DepartmentID,
		FacilityID:   req.FacilityID,
		Subject:      req.Subject,
		Description:  req.Description,
		Type:         req.Type,
		Priority:     req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromConcern(concern)})
}

// Get GET /api/v1/concerns/:id.
func (h *ConcernsHandler) Get(c *fiber.Ctx) error {
	concern, err := h.concerns.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("concern", map[string]any{"concern_id": c.Params("id")})
		}
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromConcern(concern)})
}

// List GET /api/v1/concerns.
func (h *ConcernsHandler) List(c *fiber.Ctx) error {
	filter := repository.ConcernFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if dept := c.Query("department_id"); dept != "" {
		filter.DepartmentID = &dept
	}
	if submitter := c.Query("submitter_id"); submitter != "" {
		filter.SubmitterID = &submitter
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []domain.ConcernStatus{domain.ConcernStatus(strings.ToUpper(status))}
	}
	if priority := c.Query("priority"); priority != "" {
		filter.Priorities = []domain.ConcernPriority{domain.ConcernPriority(strings.ToUpper(priority))}
	}

	concerns, err := h.concerns.ListWithFilter(c.Context(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.ConcernResponse, 0, len(concerns))
	for i := range concerns {
		items = append(items, dto.FromConcern(&concerns[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /api/v1/concerns/:id/status.
func (h *ConcernsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	actorType := req.ActorType
	if actorType == "" {
		actorType = domain.ActorTypeStaff
	}

	concern, err := h.workflow.UpdateStatus(c.Context(), c.Params("id"), req.Status, actorType, req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromConcern(concern)})
}

// Assign POST /api/v1/concerns/:id/assign triggers the scoring-based
// auto-assignment for a concern.
func (h *ConcernsHandler) Assign(c *fiber.Ctx) error {
	concern, err := h.concerns.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("concern", map[string]any{"concern_id": c.Params("id")})
		}
		return apperrors.MapError(err)
	}
	outcome, err := h.assigner.AutoAssign(c.Context(), concern)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"assigned":         outcome.Assigned,
		"score":            outcome.Score,
		"cross_department": outcome.CrossDepartment,
		"concern":          dto.FromConcern(concern),
	}})
}
