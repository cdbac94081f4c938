package audit

import (
	"github.com/suscribo/suscribo/internal/audit/repository"
	"github.com/suscribo/suscribo/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
