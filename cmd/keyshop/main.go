package main

import (
	"context"

	"github.com/niksmo/keyshop/config"
	"github.com/niksmo/keyshop/internal/app"
	"github.com/niksmo/keyshop/pkg/sigctx"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	shop := app.New(sigCtx, cfg)

	shop.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(
		context.Background(), cfg.HTTP.CloseTimeout,
	)
	defer cancel()

	shop.Close(ctx)
}
