package bootstrap

import (
	"context"
	"log"

	"ai-meeting-copilot-be/internal/config"
	"ai-meeting-copilot-be/internal/controller"
	"ai-meeting-copilot-be/internal/handler"
	"ai-meeting-copilot-be/internal/pkg/logger"
	"ai-meeting-copilot-be/internal/pkg/mailer"
	"ai-meeting-copilot-be/internal/repository/implementation"
	"ai-meeting-copilot-be/internal/repository/memory"
	"ai-meeting-copilot-be/internal/service"
	"ai-meeting-copilot-be/internal/websocket"
	"ai-meeting-copilot-be/pkg/embedding"
	"ai-meeting-copilot-be/pkg/embedding/jina"
	"ai-meeting-copilot-be/pkg/llm/factory"

	pkgnats "ai-meeting-copilot-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	MeetingController controller.IMeetingController

	// Realtime channel handlers
	ObservationHandler  *handler.ObservationHandler
	FacilitationHandler *handler.FacilitationHandler
	WebSocketHub        *websocket.Hub

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.EmbeddingProvider == "jina" {
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// In-memory facilitation session storage
	sessionRepo := memory.NewSessionRepository()

	// 4. Infrastructure
	natsPub, err := pkgnats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pkgnats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

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

	// WebSocket hub
	wsLogger := logger.NewIsolatedLogger("logs/realtime.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	wsHub.Run()

	// 5. Repositories
	meetingRepo := implementation.NewMeetingRepository(db)
	embedRepo := implementation.NewTranscriptEmbeddingRepository(db)

	// 6. Services
	publisherService := service.NewPublisherService(cfg.Keys.TranscriptEmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.TranscriptEmbedTopic,
		embedRepo,
		embeddingProvider,
	)

	observationService := service.NewObservationService(
		handler.ObserverDelivery{Hub: wsHub},
		llmProvider,
		embeddingProvider,
		embedRepo,
		publisherService,
		sysLogger,
		cfg.Meeting.VideoFrameInterval,
		cfg.Meeting.ContextSnippets,
	)

	facilitationService := service.NewFacilitationService(
		sessionRepo,
		handler.FacilitatorDelivery{Hub: wsHub},
		llmProvider,
		meetingRepo,
		publisherService,
		natsPub,
		sysLogger,
	)

	meetingService := service.NewMeetingService(meetingRepo)

	// 7. Workers
	if natsSub != nil && cfg.Meeting.SummaryEmail != "" {
		mailWorker := handler.NewSummaryMailWorker(natsSub, emailService, cfg.Meeting.SummaryEmail, sysLogger)
		if err := mailWorker.Start(); err != nil {
			log.Printf("[WARN] Failed to start summary mail worker: %v", err)
		}
	}

	// 8. Handlers & controllers
	return &Container{
		MeetingController:   controller.NewMeetingController(meetingService),
		ObservationHandler:  handler.NewObservationHandler(observationService, wsHub, wsLogger),
		FacilitationHandler: handler.NewFacilitationHandler(facilitationService, wsHub, wsLogger),
		WebSocketHub:        wsHub,

		ConsumerService: consumerService,
	}
}
