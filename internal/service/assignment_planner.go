package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
)

// Assignment pools, in scan order.
const (
	PoolSpecialist = "specialist"
	PoolGeneral    = "general"
)

// TechnicianDirectory lists staff by role and specialty, oldest record first.
type TechnicianDirectory interface {
	ListByRoleAndSpecialty(ctx context.Context, role domain.Role, specialty string) ([]domain.User, error)
}

// WorkloadLookup counts a technician's tickets outside the excluded statuses.
type WorkloadLookup interface {
	CountByAssigneeExcluding(ctx context.Context, assigneeID string, excluded []domain.TicketStatus) (int, error)
}

// Assignment is the planner's pick.
type Assignment struct {
	Technician domain.User
	Pool       string
	// Workload is the active ticket count observed when the pick was made.
	Workload int
}

// AssignmentPlanner picks the first technician under capacity, specialists before the general pool.
type AssignmentPlanner struct {
	directory TechnicianDirectory
	workload  WorkloadLookup
	policy    config.PolicyConfig
	logger    *zap.Logger
}

// NewAssignmentPlanner builds a planner over the given lookups.
func NewAssignmentPlanner(directory TechnicianDirectory, workload WorkloadLookup, policy config.PolicyConfig, logger *zap.Logger) *AssignmentPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentPlanner{directory: directory, workload: workload, policy: policy, logger: logger}
}

// Plan returns nil when the ticket is not a repair or nobody has capacity.
func (p *AssignmentPlanner) Plan(ctx context.Context, ticket *domain.Ticket) (*Assignment, error) {
	if ticket == nil || ticket.ServiceType != domain.ServiceTypeRepair {
		return nil, nil
	}

	pools := []struct {
		name      string
		specialty string
	}{
		{PoolSpecialist, ticket.Product.DeviceType},
		{PoolGeneral, domain.SpecialtyGeneral},
	}
	for i, pool := range pools {
		if i > 0 && pool.specialty == pools[0].specialty {
			break
		}
		assignment, err := p.firstFit(ctx, pool.specialty)
		if err != nil {
			return nil, err
		}
		if assignment != nil {
			assignment.Pool = pool.name
			return assignment, nil
		}
	}

	p.logger.Info("no technician with capacity",
		zap.String("ticket_id", ticket.ID),
		zap.String("device_type", ticket.Product.DeviceType),
		zap.Int("capacity_limit", p.policy.CapacityLimit))
	return nil, nil
}

func (p *AssignmentPlanner) firstFit(ctx context.Context, specialty string) (*Assignment, error) {
	candidates, err := p.directory.ListByRoleAndSpecialty(ctx, domain.RoleTechnician, specialty)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if candidate.Role != domain.RoleTechnician || candidate.Specialty != specialty {
			continue
		}
		active, err := p.workload.CountByAssigneeExcluding(ctx, candidate.ID, domain.WorkloadExcludedStatuses)
		if err != nil {
			return nil, err
		}
		if active < p.policy.CapacityLimit {
			return &Assignment{Technician: candidate, Workload: active}, nil
		}
	}
	return nil, nil
}
