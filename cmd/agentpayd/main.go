package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"agentpay/internal/app"
	"agentpay/internal/httpapi"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML")
	flag.Parse()

	cfg, err := app.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	wire, err := app.NewWire(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatal(err)
	}

	api := httpapi.NewServer(wire.Accounts, wire.Sessions, wire.Transfers, wire.Balances, wire.Owner)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("agentpayd listening on %s (chain %d, owner %s)", cfg.Listen, wire.OwnerCfg.ChainID, wire.Owner.Address())
	log.Fatal(srv.ListenAndServe())
}
