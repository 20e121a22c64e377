package main // Entry point for the POS bridge

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/robertos-pos/bc-bridge/internal/config"
	"github.com/robertos-pos/bc-bridge/internal/erp"
	"github.com/robertos-pos/bc-bridge/internal/guard"
	"github.com/robertos-pos/bc-bridge/internal/handler"
	"github.com/robertos-pos/bc-bridge/internal/hub"
	"github.com/robertos-pos/bc-bridge/internal/printer"
	"github.com/robertos-pos/bc-bridge/internal/router"
	"github.com/robertos-pos/bc-bridge/internal/store"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env always wins
	cfg := config.Load()

	// Back office: real client when configured, fixtures otherwise,
	// with a Redis read-through cache in front when Redis is around.
	var erpClient erp.Client
	if cfg.ERP.Configured() {
		erpClient = erp.NewRemote(cfg.ERP)
		log.Printf("[erp] using back office %s/%s", cfg.ERP.Region, cfg.ERP.Environment)
	} else {
		erpClient = erp.NewDemo()
		log.Printf("[erp] no tenant/company configured, demo mode")
	}
	if rdb := config.NewRedisClient(); rdb != nil {
		erpClient = erp.NewCached(erpClient, rdb, cfg.CacheTTL)
		log.Printf("[erp] response cache enabled (ttl=%s)", cfg.CacheTTL)
	}

	broadcast := hub.New()
	posStore := store.Open(cfg.DataDir, broadcast)

	relay := printer.NewRelay(cfg.PrinterWSURL, cfg.PrinterAckTimeout, cfg.PrinterRetry)
	go relay.Run()
	defer relay.Close()

	sales := guard.NewRecent(guard.DefaultCapacity)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:   handler.NewAuthHandler(cfg),
		Pos:    handler.NewPosHandler(posStore),
		ERP:    handler.NewERPHandler(erpClient, sales),
		Health: &handler.HealthHandler{Env: cfg.Env, Printer: relay},
		WS:     handler.NewWSHandler(cfg.JWTSecret, posStore, broadcast, relay, sales, cfg.AllowedOrigins),
	}, cfg.JWTSecret, cfg.AllowedOrigins)

	addr := ":" + cfg.Port
	log.Printf("[bc-bridge] listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
