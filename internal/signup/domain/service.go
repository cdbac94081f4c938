package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/suscribo/suscribo/internal/account/domain"
)

type RegisterRequest struct {
	Email   string
	Country string
	PlanID  snowflake.ID
}

// Service onboards a new account: account row, active subscription and the
// registration invoice are created as one unit.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*accountdomain.Account, error)
}
