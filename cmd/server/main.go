package main

import (
	"crm-messaging-api/internal/app/server"
	"crm-messaging-api/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
