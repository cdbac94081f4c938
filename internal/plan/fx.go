package plan

import (
	"github.com/suscribo/suscribo/internal/plan/repository"
	"github.com/suscribo/suscribo/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
