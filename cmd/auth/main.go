package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/streamflow/internal/server"
	"github.com/dmitrijs2005/streamflow/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.Load(config.ServiceAuth, os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewAuthApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
