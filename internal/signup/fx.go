package signup

import (
	"github.com/suscribo/suscribo/internal/signup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("signup.service",
	fx.Provide(service.NewService),
)
