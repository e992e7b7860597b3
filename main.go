package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"flatter-chat/internal/auth"
	"flatter-chat/internal/chat"
	"flatter-chat/internal/db"
	"flatter-chat/internal/handlers"
	"flatter-chat/internal/middleware"
	"flatter-chat/internal/observability"
	"flatter-chat/internal/rabbitmq"
	"flatter-chat/internal/repositories"
	"flatter-chat/internal/telemetry"
	"flatter-chat/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "flatter-chat", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "flatter.events")

	auditPublisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))

	auditEmitter := telemetry.NewAuditEmitter(
		auditPublisher,
		getEnv("AUDIT_ROUTING_KEY", "audit.chat"),
		"flatter-chat",
		getEnv("ENVIRONMENT", "development"),
	)

	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("event publisher disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	inboxRepo := repositories.NewInboxRepo(database)
	profileRepo := repositories.NewProfileRepo(database)

	chatService := chat.NewChatService(conversationRepo, messageRepo, inboxRepo, profileRepo)

	verifier := auth.NewJWT(getEnv("JWT_SECRET", "dev-secret"))

	hub := ws.NewHub()

	chatHandler := handlers.NewChatHandler(chatService, hub)
	conversationWS := ws.NewConversationWebSocketHandler(hub, chatService, verifier)
	inboxWS := ws.NewInboxWebSocketHandler(hub, chatService, verifier)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("flatter-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats/start", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.PUT("/chats/:chat_id/status", authMiddleware, chatHandler.UpdateChatStatus)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkChatRead)
	router.DELETE("/chats/:chat_id/me", authMiddleware, chatHandler.DeleteChatForMe)

	router.GET("/ws/chats/:chat_id", conversationWS.Handle)
	router.GET("/ws/inbox", inboxWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, getEnv("DEBUG_ENDPOINTS", "") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
