package server

import (
	"log"
	"net/http"

	"engagement-service/internal/config"
	hrest "engagement-service/internal/handler/http"
	wshandler "engagement-service/internal/handler/ws"
	"engagement-service/internal/mailbox"
	"engagement-service/internal/middleware"
	"engagement-service/internal/repository"
	"engagement-service/internal/router"
	"engagement-service/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewServer(cfg config.AppConfig) *http.Server {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// --- Stores ---
	store := mailbox.NewStore(repository.NewMailbox(dbpool), logger)
	reviews := repository.NewReviewLedger(dbpool)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Auth middleware ---
	pub, err := middleware.LoadRSAPublicKeyFromPEM(cfg.JWTPublicKeyPath)
	if err != nil {
		log.Fatalf("failed to load session public key: %v", err)
	}
	auth := middleware.NewVerifier(pub, cfg.JWTIssuer, cfg.JWTAudience)

	// --- Usecases ---
	dispatcher := usecase.NewDispatcher(store, logger)
	gate := usecase.NewRatingDebtGate(store)
	uc := usecase.NewEngagementUsecase(store, reviews, dispatcher, gate, logger)

	// --- Handlers ---
	restHandler := hrest.NewEngagementHandler(uc, store, reviews)
	wsHandler := wshandler.NewWSHandler(store, logger)

	// --- HTTP routes ---
	r := chi.NewRouter()
	router.SetupRoutes(r, restHandler, wsHandler, auth, rdb)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
}
