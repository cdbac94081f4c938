package payment

import (
	"github.com/suscribo/suscribo/internal/payment/repository"
	"github.com/suscribo/suscribo/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
