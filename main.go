// @title Kiwi Quiz Service API
// @version 1.0
// @description Educational quiz microservice: AI-assisted quiz generation and submission grading.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
package main

import (
	"log"

	"kiwi_quiz_service/internal/app"
	"kiwi_quiz_service/internal/config"
	"kiwi_quiz_service/pkg/configwatcher"
	"kiwi_quiz_service/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if c, ok := newCfg.(*config.Config); ok {
			application.ApplyConfig(c)
		}
	})

	application.Run()
}
