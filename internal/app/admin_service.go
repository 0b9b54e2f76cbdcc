package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hazeclub/drops-api/internal/clock"
	"github.com/hazeclub/drops-api/internal/domain"
)

type AdminRepository interface {
	CreateDrop(ctx context.Context, drop domain.Drop) error
	GetDrop(ctx context.Context, id string) (domain.Drop, error)
	ListDrops(ctx context.Context) ([]domain.Drop, error)
	CreateDropLine(ctx context.Context, line domain.DropLine) error
	ListLinesByDrop(ctx context.Context, dropID string) ([]domain.DropLine, error)
}

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
	}
}

type CreateDropInput struct {
	Name                string
	Type                domain.DropType
	StartTime           time.Time
	EndTime             *time.Time
	MaxQuantity         *int
	VIPEarlyAccessHours int
}

func (s *AdminService) CreateDrop(ctx context.Context, in CreateDropInput) (domain.Drop, error) {
	if in.Name == "" {
		return domain.Drop{}, domain.ErrNameRequired
	}
	if !domain.ValidDropType(in.Type) {
		return domain.Drop{}, domain.ErrInvalidType
	}
	if in.StartTime.IsZero() {
		return domain.Drop{}, domain.ErrInvalidSchedule
	}
	if in.EndTime != nil && !in.EndTime.After(in.StartTime) {
		return domain.Drop{}, domain.ErrInvalidSchedule
	}
	if in.MaxQuantity != nil && *in.MaxQuantity <= 0 {
		return domain.Drop{}, domain.ErrInvalidQuantity
	}
	if in.VIPEarlyAccessHours < 0 {
		return domain.Drop{}, domain.ErrInvalidSchedule
	}

	drop := domain.Drop{
		ID:                  uuid.NewString(),
		Name:                in.Name,
		Type:                in.Type,
		Status:              domain.DropStatusDraft,
		StartTime:           in.StartTime,
		EndTime:             in.EndTime,
		MaxQuantity:         in.MaxQuantity,
		VIPEarlyAccessHours: in.VIPEarlyAccessHours,
		CreatedAt:           s.clock.Now(),
	}

	if err := s.repo.CreateDrop(ctx, drop); err != nil {
		return domain.Drop{}, err
	}
	return drop, nil
}

func (s *AdminService) GetDrop(ctx context.Context, id string) (domain.Drop, error) {
	if id == "" {
		return domain.Drop{}, domain.ErrInvalidID
	}
	return s.repo.GetDrop(ctx, id)
}

func (s *AdminService) ListDrops(ctx context.Context) ([]domain.Drop, error) {
	return s.repo.ListDrops(ctx)
}

type AddDropLineInput struct {
	DropID             string
	Name               string
	QuantityAvailable  int
	UnitBasePriceCents int
}

func (s *AdminService) AddDropLine(ctx context.Context, in AddDropLineInput) (domain.DropLine, error) {
	if in.DropID == "" {
		return domain.DropLine{}, domain.ErrInvalidID
	}
	if in.Name == "" {
		return domain.DropLine{}, domain.ErrNameRequired
	}
	if in.QuantityAvailable <= 0 {
		return domain.DropLine{}, domain.ErrInvalidQuantity
	}
	if in.UnitBasePriceCents <= 0 {
		return domain.DropLine{}, domain.ErrInvalidPrice
	}

	if _, err := s.repo.GetDrop(ctx, in.DropID); err != nil {
		return domain.DropLine{}, err
	}

	line := domain.DropLine{
		ID:                 uuid.NewString(),
		DropID:             in.DropID,
		Name:               in.Name,
		QuantityAvailable:  in.QuantityAvailable,
		UnitBasePriceCents: in.UnitBasePriceCents,
		CreatedAt:          s.clock.Now(),
	}

	if err := s.repo.CreateDropLine(ctx, line); err != nil {
		return domain.DropLine{}, err
	}
	return line, nil
}

func (s *AdminService) ListLines(ctx context.Context, dropID string) ([]domain.DropLine, error) {
	if dropID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListLinesByDrop(ctx, dropID)
}
