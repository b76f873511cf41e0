package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/peer-network/peer-backend-sub001/docs"
	"github.com/peer-network/peer-backend-sub001/internal/config"
	"github.com/peer-network/peer-backend-sub001/internal/database"
	"github.com/peer-network/peer-backend-sub001/internal/handlers"
	mW "github.com/peer-network/peer-backend-sub001/internal/middleware"
	"github.com/peer-network/peer-backend-sub001/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Peer Token Ledger API
// @version 1.0
// @description Token ledger, gems and mint core for the peer network
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("tokenomics.pool_fee", "TOKENOMICS_POOL_FEE")
	viper.BindEnv("tokenomics.peer_fee", "TOKENOMICS_PEER_FEE")
	viper.BindEnv("tokenomics.burn_fee", "TOKENOMICS_BURN_FEE")
	viper.BindEnv("tokenomics.inviter_fee", "TOKENOMICS_INVITER_FEE")
	viper.BindEnv("tokenomics.daily_mint_budget", "TOKENOMICS_DAILY_MINT_BUDGET")

	viper.BindEnv("accounts.pool", "ACCOUNTS_POOL")
	viper.BindEnv("accounts.peer", "ACCOUNTS_PEER")
	viper.BindEnv("accounts.burn", "ACCOUNTS_BURN")
	viper.BindEnv("accounts.bridge_pool", "ACCOUNTS_BRIDGE_POOL")
	viper.BindEnv("accounts.inviter_bank", "ACCOUNTS_INVITER_BANK")
	viper.BindEnv("accounts.mint", "ACCOUNTS_MINT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Peer Token Ledger API"
	docs.SwaggerInfo.Description = "Token ledger, gems and mint core for the peer network"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	policy := config.LoadTokenomics()
	accounts, err := services.NewSystemAccounts(policy.Accounts)
	if err != nil {
		log.Fatalf("Invalid system accounts configuration: %v", err)
	}

	ledgerService := services.NewWalletLedgerService(db)
	gemsService := services.NewGemsService(db, policy)
	mintService, err := services.NewMintService(db, gemsService, ledgerService, accounts, policy)
	if err != nil {
		log.Fatalf("Invalid mint configuration: %v", err)
	}
	transferService, err := services.NewTransferService(db, redisClient, ledgerService, accounts, policy)
	if err != nil {
		log.Fatalf("Invalid fee configuration: %v", err)
	}
	bridgeService := services.NewBridgeService(db, redisClient, ledgerService, accounts)
	paymentCodeService := services.NewPaymentCodeService(redisClient)

	gemsHandler := handlers.NewGemsHandler(gemsService)
	walletHandler := handlers.NewWalletHandler(ledgerService, transferService, bridgeService)
	mintHandler := handlers.NewMintHandler(mintService)
	paymentCodeHandler := handlers.NewPaymentCodeHandler(paymentCodeService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// Gems endpoints
			r.Post("/gems", gemsHandler.RecordGem)
			r.Get("/gems/uncollected", gemsHandler.Uncollected)
			r.Get("/gems/stats", gemsHandler.Stats)

			// Mint endpoints
			r.Post("/mint", mintHandler.RunMint)
			r.Get("/mint/records", mintHandler.Records)

			// Wallet endpoints
			r.Post("/transfers", walletHandler.Transfer)
			r.Get("/wallets/{accountId}/balance", walletHandler.Balance)
			r.Get("/wallets/{accountId}/reconcile", walletHandler.Reconcile)
			r.Get("/wallets/{accountId}/transactions", walletHandler.Transactions)

			// Bridge endpoints
			r.Post("/bridge/out", walletHandler.BridgeOut)

			// Payment code endpoints
			r.Post("/payment-codes", paymentCodeHandler.CreateCode)
			r.Post("/payment-codes/resolve", paymentCodeHandler.ResolveCode)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
