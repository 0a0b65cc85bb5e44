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
	cfg, err := config.Load(config.ServiceUsers, os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := server.NewUsersApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}

}
