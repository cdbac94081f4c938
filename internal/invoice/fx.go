package invoice

import (
	"github.com/suscribo/suscribo/internal/invoice/repository"
	"github.com/suscribo/suscribo/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
