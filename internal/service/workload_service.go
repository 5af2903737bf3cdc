package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/cache"
	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/repository"
)

const utilizationCacheKey = "workload:utilization"

// DepartmentUtilization is the per-department load snapshot.
type DepartmentUtilization struct {
	DepartmentID   string  `json:"department_id"`
	DepartmentName string  `json:"department_name"`
	StaffCount     int     `json:"staff_count"`
	ActiveConcerns int     `json:"active_concerns"`
	Capacity       int     `json:"capacity"`
	Utilization    float64 `json:"utilization"`
	Overloaded     bool    `json:"overloaded"`
}

// RebalanceReport captures one balancing sweep for observability.
type RebalanceReport struct {
	Before []DepartmentUtilization `json:"before"`
	After  []DepartmentUtilization `json:"after"`
	Moves  int                     `json:"moves"`
}

// WorkloadService analyzes department utilization and feeds overloaded
// departments' unassigned concerns into the cross-department scorer.
type WorkloadService struct {
	concerns    repository.ConcernRepository
	staff       repository.StaffRepository
	departments repository.DepartmentRepository
	assigner    *AssignmentService
	snapshots   *cache.Cache
	logger      *zap.Logger
	cfg         config.BalancerConfig
	maxWorkload int
}

// WorkloadDependencies bundles collaborators.
type WorkloadDependencies struct {
	ConcernRepo    repository.ConcernRepository
	StaffRepo      repository.StaffRepository
	DepartmentRepo repository.DepartmentRepository
	Assigner       *AssignmentService
	Snapshots      *cache.Cache
	Logger         *zap.Logger
	Config         config.BalancerConfig
	MaxWorkload    int
}

// NewWorkloadService creates the balancer.
func NewWorkloadService(deps WorkloadDependencies) *WorkloadService {
	maxWorkload := deps.MaxWorkload
	if maxWorkload <= 0 {
		maxWorkload = 5
	}
	return &WorkloadService{
		concerns:    deps.ConcernRepo,
		staff:       deps.StaffRepo,
		departments: deps.DepartmentRepo,
		assigner:    deps.Assigner,
		snapshots:   deps.Snapshots,
		logger:      deps.Logger,
		cfg:         deps.Config,
		maxWorkload: maxWorkload,
	}
}

// AnalyzeUtilization returns the per-department snapshot through the
// pull-through cache; dashboards can poll this without hammering the
// aggregate queries.
func (s *WorkloadService) AnalyzeUtilization(ctx context.Context) ([]DepartmentUtilization, error) {
	payload, err := s.snapshots.GetOrLoad(ctx, utilizationCacheKey, s.cfg.SnapshotTTL(), func(ctx context.Context) ([]byte, error) {
		fresh, err := s.computeUtilization(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(fresh)
	})
	if err != nil {
		return nil, err
	}
	var result []DepartmentUtilization
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Rebalance routes unassigned concerns out of overloaded departments, at
// most MaxMovesPerSweep per department to avoid thrashing.
func (s *WorkloadService) Rebalance(ctx context.Context) (*RebalanceReport, error) {
	before, err := s.computeUtilization(ctx)
	if err != nil {
		return nil, err
	}

	report := &RebalanceReport{Before: before}
	for _, dept := range before {
		if !dept.Overloaded {
			continue
		}
		moved, err := s.rebalanceDepartment(ctx, dept.DepartmentID)
		if err != nil {
			s.logger.Warn("rebalance failed for department",
				zap.String("department_id", dept.DepartmentID), zap.Error(err))
			continue
		}
		report.Moves += moved
	}

	after, err := s.computeUtilization(ctx)
	if err != nil {
		return nil, err
	}
	report.After = after
	return report, nil
}

func (s *WorkloadService) rebalanceDepartment(ctx context.Context, departmentID string) (int, error) {
	candidates, err := s.concerns.ListWithFilter(ctx, repository.ConcernFilter{
		DepartmentID: &departmentID,
		Statuses:     []domain.ConcernStatus{domain.ConcernStatusPending, domain.ConcernStatusApproved},
		HasAssignee:  ptrBool(false),
		Archived:     ptrBool(false),
		Limit:        50,
	})
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range candidates {
		if moved >= s.cfg.MaxMovesPerSweep {
			break
		}
		concern := candidates[i]
		outcome, err := s.assigner.CrossDepartmentRescue(ctx, &concern,
			s.cfg.RebalanceThreshold, 0, domain.AssignmentTypeOverloadBalancing)
		if err != nil {
			s.logger.Warn("overload reassignment failed",
				zap.String("concern_id", concern.ID), zap.Error(err))
			continue
		}
		if outcome != nil && outcome.Assigned {
			moved++
		}
	}
	return moved, nil
}

// Overloaded applies the utilization threshold.
func (s *WorkloadService) Overloaded(utilization float64) bool {
	return utilization >= s.cfg.OverloadUtilization
}

func (s *WorkloadService) computeUtilization(ctx context.Context) ([]DepartmentUtilization, error) {
	departments, err := s.departments.List(ctx, true)
	if err != nil {
		return nil, err
	}

	result := make([]DepartmentUtilization, 0, len(departments))
	for _, dept := range departments {
		staffCount, err := s.staff.CountByDepartment(ctx, dept.ID)
		if err != nil {
			return nil, err
		}
		active, err := s.concerns.CountActiveByDepartment(ctx, dept.ID)
		if err != nil {
			return nil, err
		}
		entry := DepartmentUtilization{
			DepartmentID:   dept.ID,
			DepartmentName: dept.Name,
			StaffCount:     staffCount,
			ActiveConcerns: active,
			Capacity:       staffCount * s.maxWorkload,
		}
		if entry.Capacity > 0 {
			entry.Utilization = float64(active) / float64(entry.Capacity)
		}
		entry.Overloaded = s.Overloaded(entry.Utilization)
		result = append(result, entry)
	}
	return result, nil
}
