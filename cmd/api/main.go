package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/robfig/cron/v3"

	"github.com/supportsphere/escalation-engine/internal/core/gateway"
	"github.com/supportsphere/escalation-engine/internal/core/ingest"
	"github.com/supportsphere/escalation-engine/internal/core/jobs"
	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/core/vector"
	"github.com/supportsphere/escalation-engine/internal/handlers"
	"github.com/supportsphere/escalation-engine/internal/repositories"
	"github.com/supportsphere/escalation-engine/internal/services"
	"github.com/supportsphere/escalation-engine/internal/shared/config"
	"github.com/supportsphere/escalation-engine/internal/shared/database"
	"github.com/supportsphere/escalation-engine/internal/shared/utils"
)

func main() {
	utils.InitLogger("api")

	cfg := config.LoadConfig()
	log.Printf("🚀 Starting escalation-engine api on port %s", cfg.Port)

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	embedder, err := vector.NewOpenAIEmbeddingProvider(
		cfg.OpenAIKey,
		cfg.EmbeddingModel,
		time.Duration(cfg.ProviderTimeoutMs)*time.Millisecond,
	)
	if err != nil {
		log.Fatalf("❌ Failed to create embedding provider: %v", err)
	}

	var vectorProvider vector.Provider
	switch cfg.VectorBackend {
	case "qdrant":
		vectorProvider, err = vector.NewQdrantProvider(cfg.QdrantHost, cfg.QdrantPort)
		if err != nil {
			log.Fatalf("❌ Failed to create qdrant provider: %v", err)
		}
	default:
		vectorProvider = vector.NewMemoryProvider()
	}
	defer vectorProvider.Close()
	log.Printf("✅ Vector backend: %s", vectorProvider.GetProviderType())

	retriever := kb.NewRetriever(vectorProvider, embedder)
	if err := retriever.Initialize(context.Background()); err != nil {
		log.Fatalf("❌ Failed to initialize retriever: %v", err)
	}

	// Repositories
	clientRepo := repositories.NewClientRepo(db.GORM)
	ticketRepo := repositories.NewTicketRepo(db.GORM)
	escalationRepo := repositories.NewEscalationRepo(db.GORM)
	kbRepo := repositories.NewKBRepo(db.GORM)
	ruleRepo := repositories.NewRuleRepo(db.GORM)

	// Services
	chunker := ingest.NewChunker(cfg.MaxChunkTokens)
	pipeline := ingest.NewPipeline(chunker, embedder, kbRepo, retriever)
	kbService := services.NewKBService(kbRepo, embedder, retriever, pipeline)

	queue := jobs.NewQueue(db.GORM)
	gatewayProvider := gateway.NewHTTPProvider(cfg.GatewayAPIURL, cfg.GatewayAPIKey)
	messageService := services.NewMessageService(
		clientRepo, ticketRepo, escalationRepo, ruleRepo,
		retriever, gatewayProvider, queue, cfg.RetrievalTopK,
	)

	// The memory backend starts empty, so build the index before serving
	if err := kbService.ReindexAll(context.Background()); err != nil {
		log.Printf("⚠️ Initial index build incomplete: %v", err)
	}

	// Periodic rebuild repairs any index drift from failed incremental updates
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 30m", func() {
		if err := kbService.ReindexAll(context.Background()); err != nil {
			log.Printf("⚠️ Periodic index rebuild incomplete: %v", err)
		}
	}); err != nil {
		log.Fatalf("❌ Failed to schedule index rebuild: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(messageService)
	kbHandler := handlers.NewKBHandler(kbService)
	ticketHandler := handlers.NewTicketHandler(messageService, ticketRepo, escalationRepo)
	ruleHandler := handlers.NewRuleHandler(ruleRepo)
	clientHandler := handlers.NewClientHandler(clientRepo, ticketRepo)
	healthHandler := handlers.NewHealthHandler(gatewayProvider, vectorProvider)

	app := fiber.New(fiber.Config{
		AppName: "Escalation Engine API",
	})
	app.Use(cors.New())

	app.Get("/health", healthHandler.GetHealth)

	// Gateway webhook
	app.Post("/webhook/:owner_id", webhookHandler.ReceiveWebhook)

	// Knowledge base
	app.Get("/owners/:owner_id/faqs", kbHandler.ListFaqs)
	app.Post("/owners/:owner_id/faqs", kbHandler.CreateFaq)
	app.Put("/faqs/:id", kbHandler.UpdateFaq)
	app.Delete("/faqs/:id", kbHandler.DeleteFaq)
	app.Get("/owners/:owner_id/documents", kbHandler.ListDocuments)
	app.Post("/owners/:owner_id/documents", kbHandler.IngestDocument)
	app.Get("/owners/:owner_id/retrieve", kbHandler.Retrieve)

	// Rules
	app.Get("/owners/:owner_id/rules", ruleHandler.ListRules)
	app.Post("/owners/:owner_id/rules", ruleHandler.CreateRule)
	app.Put("/rules/:id", ruleHandler.UpdateRule)
	app.Delete("/rules/:id", ruleHandler.DeleteRule)

	// Tickets and escalations
	app.Post("/tickets/:id/resolve", ticketHandler.ResolveTicket)
	app.Get("/tickets/:id/messages", ticketHandler.ListMessages)
	app.Put("/tickets/:id/messages/:message_uuid", ticketHandler.EditMessage)
	app.Delete("/tickets/:id/messages/:message_uuid", ticketHandler.DeleteMessage)
	app.Get("/owners/:owner_id/escalations", ticketHandler.ListPendingEscalations)

	// Clients
	app.Get("/clients/:id", clientHandler.GetClient)
	app.Get("/clients/:id/tickets", clientHandler.ListTickets)
	app.Post("/clients/:id/agent", clientHandler.AssignAgent)

	log.Printf("✅ escalation-engine api running at :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
