package main

import (
	"context"
	"log"
	"os"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/gophpass/internal/app"
	"github.com/dmitrijs2005/gophpass/internal/buildinfo"
	"github.com/dmitrijs2005/gophpass/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	defer memguard.Purge()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Printf("config: %v", err)
		memguard.SafeExit(2)
	}

	a, err := app.NewApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		log.Printf("%v", err)
		memguard.SafeExit(1)
	}

	a.Run(context.Background())

}
