package ports

import (
	"context"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

// ResidentRepository reads registered resident profiles.
type ResidentRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Resident, error)
	FindByUserID(ctx context.Context, userID string) (*domain.Resident, error)
}
