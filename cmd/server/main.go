package main

import (
	"log"
	"os"

	"github.com/ringlabs/twitposter/internal/config"
	"github.com/ringlabs/twitposter/internal/db"
	"github.com/ringlabs/twitposter/internal/httpapi"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/store/rabbitmq"
	"github.com/ringlabs/twitposter/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		log.Fatalf("local store open: %v", err)
	}

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	// Rabbit is optional: without it migrations run inline on login.
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Printf("rabbit unavailable, migrations will run inline: %v", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, rds, local, pub)

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
