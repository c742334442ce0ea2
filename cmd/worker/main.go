package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"festpass/internal/config"
	"festpass/internal/queue"
	"festpass/internal/store"
)

type scanEvent struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	College   string `json:"college"`
	Method    string `json:"method"`
}

// Worker tails the scan feed and logs each successful validation, giving ops
// a live check-in ticker without touching the database.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatal("worker requires QUEUE_BACKEND=redis; the memory feed is process-local")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	feed := queue.NewRedisQueue(redisClient.Client, cfg.ScanFeedKey)

	messages, err := feed.Consume(ctx)
	if err != nil {
		log.Fatalf("scan feed consume init failed: %v", err)
	}

	log.Println("worker started, tailing scan feed...")
	count := 0
	for msg := range messages {
		if msg.Type != "scan" {
			continue
		}
		var evt scanEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			log.Printf("bad scan event: %v", err)
			continue
		}
		count++
		log.Printf("check-in #%d: %s (%s, %s) via %s", count, evt.Name, evt.StudentID, evt.College, evt.Method)
	}

	log.Println("worker stopped")
}
