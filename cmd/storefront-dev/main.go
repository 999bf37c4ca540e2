package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/devserver"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := devserver.LoadConfig()
		if err != nil {
			return err
		}
		return devserver.Run(ctx, lg, m, cfg)
	})
}
