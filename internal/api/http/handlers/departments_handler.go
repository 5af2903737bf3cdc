package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/studentlink/concern-service/internal/service"
	"github.com/studentlink/concern-service/internal/worker"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

// DepartmentsHandler exposes workload visibility and the manual sweep trigger.
type DepartmentsHandler struct {
	workload *service.WorkloadService
	sweeper  *worker.SweepWorker
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(workload *service.WorkloadService, sweeper *worker.SweepWorker) *DepartmentsHandler {
	return &DepartmentsHandler{workload: workload, sweeper: sweeper}
}

// Utilization GET /api/v1/departments/utilization.
func (h *DepartmentsHandler) Utilization(c *fiber.Ctx) error {
	snapshots, err := h.workload.AnalyzeUtilization(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": snapshots})
}

// Rebalance POST /api/v1/departments/rebalance moves concerns off overloaded
// departments immediately instead of waiting for the next sweep.
func (h *DepartmentsHandler) Rebalance(c *fiber.Ctx) error {
	report, err := h.workload.Rebalance(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": report})
}

// RunSweep POST /api/v1/sweeps/run executes a full maintenance sweep.
func (h *DepartmentsHandler) RunSweep(c *fiber.Ctx) error {
	h.sweeper.RunOnce(c.Context())
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "completed"}})
}
