package subscription

import (
	"github.com/suscribo/suscribo/internal/subscription/repository"
	"github.com/suscribo/suscribo/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
