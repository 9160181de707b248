package bootstrap

import (
	"context"
	"log"
	"os"

	"coeus-ai-be/internal/config"
	"coeus-ai-be/internal/controller"
	"coeus-ai-be/internal/pkg/logger"
	"coeus-ai-be/internal/repository/memory"
	"coeus-ai-be/internal/service"
	"coeus-ai-be/internal/websocket"
	"coeus-ai-be/pkg/genai"
	"coeus-ai-be/pkg/llm/factory"

	pktNats "coeus-ai-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ChatController       controller.IChatController
	DocumentController   controller.IDocumentController
	GenerationController controller.IGenerationController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Generation Backend
	// A configured remote endpoint wins; otherwise generation runs in-process
	// through the provider adapter. Both paths speak the same chunk-line
	// protocol.
	var invoker genai.Invoker
	if cfg.Ai.GenerationEndpoint != "" {
		invoker = genai.NewHTTPClient(cfg.Ai.GenerationEndpoint)
		log.Printf("[INFO] Using remote generation endpoint: %s", cfg.Ai.GenerationEndpoint)
	} else {
		llmProvider, err := factory.NewLLMProvider(
			cfg.Ai.LLMProvider,
			cfg.Ai.LLMModel,
			cfg.Ai.OllamaBaseURL,
			cfg.Keys.GoogleGemini,
		)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
		}
		invoker = genai.NewProviderInvoker(llmProvider)
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	}

	// Initialize In-Memory Conversation Storage
	convRepo := memory.NewConversationRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		natsSub = nil
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/turn_events.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Keys.UploadedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.UploadedTopic,
		convRepo,
		sysLogger,
	)

	chatService := service.NewChatService(
		convRepo,
		invoker,
		cfg.Documents.MaxCount,
		cfg.Documents.MaxBytes,
		wsHub,
		natsPub,
	)
	documentService := service.NewDocumentService(convRepo, publisherService)

	// Usage audit worker (reads back what the chat service publishes)
	if natsSub != nil {
		usageAudit := service.NewUsageAuditService(natsSub, sysLogger)
		if err := usageAudit.Start(); err != nil {
			log.Printf("[WARN] Failed to start usage audit worker: %v", err)
		}
	}

	genLogger := log.New(os.Stdout, "[GENERATION] ", log.LstdFlags)

	// 5. Controllers
	return &Container{
		ChatController:       controller.NewChatController(chatService, documentService, wsHub),
		DocumentController:   controller.NewDocumentController(documentService),
		GenerationController: controller.NewGenerationController(invoker, genLogger),

		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
	}
}
