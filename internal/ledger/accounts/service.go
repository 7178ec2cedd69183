package accounts

import (
	"context"

	"github.com/atlas-erp/atlas-erp/internal/ledger"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) GetByCode(ctx context.Context, code string) (ledger.Account, error) {
	return s.repo.GetByCode(ctx, code)
}
