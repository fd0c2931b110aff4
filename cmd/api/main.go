package main

import (
	"context"
	"log"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"lapakchat/internal/adapter/api"
	"lapakchat/internal/adapter/api/handler"
	apimiddleware "lapakchat/internal/adapter/api/middleware"
	"lapakchat/internal/adapter/api/router"
	"lapakchat/internal/adapter/repository"
	"lapakchat/internal/domain/entity"
	domainrepo "lapakchat/internal/domain/repository"
	"lapakchat/internal/infrastructure/crypto"
	"lapakchat/internal/infrastructure/firebase"
	"lapakchat/internal/infrastructure/ratelimit"
	"lapakchat/internal/infrastructure/websocket"
	"lapakchat/internal/usecase"
	"lapakchat/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	codec, err := crypto.NewCodec(cfg.ChatCipherKey)
	if err != nil {
		log.Fatalf("Failed to initialize message codec: %v", err)
	}

	rateLimiter := ratelimit.NewRateLimiter(cfg.ChatRateLimit, time.Duration(cfg.ChatRateWindowSecs)*time.Second, nil)
	stopCleanup := make(chan struct{})
	rateLimiter.StartCleanupRoutine(stopCleanup)
	defer close(stopCleanup)

	wsManager := websocket.NewManager()

	var (
		chatRepo    domainrepo.ChatRepository
		userRepo    domainrepo.UserRepository
		productRepo domainrepo.ProductRepository
		verifier    apimiddleware.TokenVerifier
	)

	if cfg.FirebaseProject != "" {
		var opt option.ClientOption
		if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
			log.Printf("Using Firebase service account from environment variable")
			opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
		} else {
			serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
			if serviceAccountPath == "" {
				log.Fatalf("FIREBASE_SERVICE_ACCOUNT_JSON or FIREBASE_SERVICE_ACCOUNT_PATH is required")
			}
			log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
			opt = option.WithCredentialsFile(serviceAccountPath)
		}

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}

		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		chatRepo = repository.NewFirestoreChatRepository(firestoreClient)
		userRepo = repository.NewFirestoreUserRepository(firestoreClient)
		productRepo = repository.NewFirestoreProductRepository(firestoreClient)
		verifier = firebase.NewAuthClient(authClient)
	} else {
		log.Printf("No Firebase project configured, using in-memory stores and dev tokens")
		memChats := repository.NewMemoryChatRepository()
		memUsers := repository.NewMemoryUserRepository()
		memProducts := repository.NewMemoryProductRepository()
		seedDevData(memUsers, memProducts)

		chatRepo = memChats
		userRepo = memUsers
		productRepo = memProducts
		verifier = firebase.NewDevTokenVerifier()
	}

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, productRepo, codec, rateLimiter, wsManager)
	session := websocket.NewSession(wsManager, chatUseCase, verifier)

	e := echo.New()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowedOrigins,
	}))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)
	chatHandler := handler.NewChatHandler(chatUseCase)
	wsHandler := handler.NewWebSocketHandler(session, cfg.AllowedOrigins)

	router.Setup(e, chatHandler, wsHandler, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// seedDevData gives the in-memory mode something to chat about. Tokens
// "dev:buyer-1" and "dev:seller-1" map to these users.
func seedDevData(users *repository.MemoryUserRepository, products *repository.MemoryProductRepository) {
	users.Put(&entity.User{ID: "buyer-1", Username: "budi", VerificationStatus: entity.VerificationStatusVerified})
	users.Put(&entity.User{ID: "seller-1", Username: "toko_jaya", VerificationStatus: entity.VerificationStatusVerified})
	products.Put(&entity.Product{
		ID:       "prod-1",
		SellerID: "seller-1",
		Title:    "Mechanical Keyboard",
		Status:   entity.ProductStatusActive,
	})
}
