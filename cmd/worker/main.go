package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/supportsphere/escalation-engine/internal/core/jobs"
	"github.com/supportsphere/escalation-engine/internal/core/llm"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/services"
	"github.com/supportsphere/escalation-engine/internal/shared/config"
	"github.com/supportsphere/escalation-engine/internal/shared/database"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

func main() {
	utils.InitLogger("worker")

	cfg := config.LoadConfig()
	log.Println("🚀 Starting escalation-engine worker")

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	escalationRepo := repositories.NewEscalationRepo(db.GORM)

	llmProvider := llm.NewOpenAIProvider(cfg.OpenAIKey, cfg.SummaryModel, 0.3, 300)
	summarizer := llm.NewSummarizer(llmProvider)
	summaryHandler := services.NewChatSummaryHandler(escalationRepo, summarizer)

	queue := jobs.NewQueue(db.GORM)
	worker := jobs.NewWorker(queue, jobs.DefaultWorkerConfig())
	worker.RegisterHandler(summaryHandler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		log.Fatalf("❌ Failed to start worker: %v", err)
	}
	log.Println("✅ Worker running, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down worker...")
	cancel()
	worker.Stop()
	log.Println("✅ Worker stopped")
}
