package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"arbitex/internal/adapter/api"
	"arbitex/internal/adapter/api/handler"
	apimiddleware "arbitex/internal/adapter/api/middleware"
	"arbitex/internal/adapter/api/router"
	"arbitex/internal/adapter/repository"
	"arbitex/internal/domain/service"
	"arbitex/internal/infrastructure/kafka"
	"arbitex/internal/infrastructure/metrics"
	"arbitex/internal/infrastructure/notifier"
	"arbitex/internal/infrastructure/websocket"
	"arbitex/internal/usecase"
	"arbitex/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption

	// Service account from env var in production, file path for local
	// development; application default credentials otherwise.
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"); serviceAccountPath != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccountPath))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	mediationRepo := repository.NewFirestoreMediationRepository(firestoreClient)
	subChatRepo := repository.NewFirestoreSubChatRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	productRepo := repository.NewFirestoreProductRepository(firestoreClient)
	walletRepo := repository.NewFirestoreWalletRepository(firestoreClient)

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	mediationMetrics := metrics.NewMediationMetrics()
	eventPublisher := kafka.NewEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if eventPublisher != nil {
		defer eventPublisher.Close()
	}

	ledger := service.NewWalletLedger(walletRepo)
	firestoreNotifier := notifier.NewFirestoreNotifier(firestoreClient, wsManager)

	mediationUseCase := usecase.NewMediationUseCase(
		mediationRepo,
		productRepo,
		userRepo,
		ledger,
		wsManager,
		firestoreNotifier,
		eventPublisher,
		mediationMetrics,
		cfg.LedgerTimeout,
	)

	subChatUseCase := usecase.NewSubChatUseCase(
		subChatRepo,
		mediationRepo,
		userRepo,
		wsManager,
		firestoreNotifier,
		mediationMetrics,
	)
	mediationUseCase.SetSubChatUseCase(subChatUseCase)

	timerManager := usecase.NewAssignmentTimerManager(mediationRepo, mediationUseCase, cfg.AssignmentWindow)
	mediationUseCase.SetAssignmentScheduler(timerManager)

	// Rebuild decision-window timers lost on restart; overdue assignments
	// time out immediately.
	if err := timerManager.Reconcile(ctx); err != nil {
		log.Printf("Assignment timer reconciliation failed: %v", err)
	}

	queryUseCase := usecase.NewMediationQueryUseCase(mediationRepo, subChatRepo)

	handler.Setup(mediationUseCase, queryUseCase, subChatUseCase)
	handler.SetupHealthHandler()

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)
	adminMiddleware := apimiddleware.NewAdminMiddleware(userRepo)

	router.Setup(e, authMiddleware, adminMiddleware)

	wsHandler := handler.NewWebSocketHandler(wsManager, authMiddleware)
	e.GET("/v1/ws", wsHandler.HandleWebSocket)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
