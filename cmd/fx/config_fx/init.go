package config_fx

import (
	"go.uber.org/fx"

	"habitloop/internal/config"
)

var Module = fx.Provide(config.Load)
