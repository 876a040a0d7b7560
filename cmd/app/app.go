package main

import (
	"os"

	"github.com/DRSN-tech/image-fingerprint/internal/app"
	config "github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return 1
	}
	log.Infof("starting image fingerprint service: model=%s version=%s input=%dpx",
		cfg.Model.Path, cfg.Model.Version, cfg.Model.InputSize)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return 1
	}

	if err := application.Run(); err != nil {
		return 1
	}
	return 0
}
