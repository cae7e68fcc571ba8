package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "hazeltrade/api/swagger" // swagger docs
	"hazeltrade/internal/database"
	"hazeltrade/internal/email"
	"hazeltrade/internal/handler"
	"hazeltrade/internal/middleware"
	"hazeltrade/internal/repository"
	"hazeltrade/internal/service"
	"hazeltrade/internal/storage"
	"hazeltrade/internal/websocket"
)

// @title           Hazel Trade API
// @version         1.0
// @description     Brokered commodity trading platform with a 12-step deal workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "hazeltrade")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	appURL := envOr("APP_URL", "http://localhost:3000")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Blob storage for uploaded documents
	blobs, err := storage.NewDiskStore(envOr("STORAGE_DIR", "./uploads"), envOr("PUBLIC_URL", "http://localhost:8080"))
	if err != nil {
		log.Fatalf("Storage setup failed: %v", err)
	}

	// Invite emails go to the log unless an SMTP relay is configured
	var mailer email.Mailer = email.LogMailer{}
	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		mailer = email.NewSMTPMailer(
			smtpHost,
			envOr("SMTP_PORT", "587"),
			os.Getenv("SMTP_USER"),
			os.Getenv("SMTP_PASS"),
			envOr("SMTP_FROM", "noreply@hazeltrade.com"),
		)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txMgr := repository.NewTransactionManager(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	dealRepo := repository.NewDealRepository(db)
	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, dealRepo, wsHub, appURL)
	workflowService := service.NewWorkflowService(workflowRepo, txMgr, notificationService)
	authService := service.NewAuthService(userRepo, middleware.GetJWTSecret())
	dealService := service.NewDealService(dealRepo, workflowRepo, userRepo, txMgr, workflowService, notificationService, mailer, appURL)

	verifyDelay := 3 * time.Second
	if raw := os.Getenv("VERIFY_DELAY_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
			verifyDelay = time.Duration(secs) * time.Second
		}
	}
	verifier := service.NewVerifier(documentRepo, workflowService, notificationService, txMgr, verifyDelay)
	go verifier.Run()

	documentService := service.NewDocumentService(documentRepo, dealRepo, workflowRepo, blobs, notificationService, verifier)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, dealService)
	dealHandler := handler.NewDealHandler(dealService, workflowService, authService)
	documentHandler := handler.NewDocumentHandler(documentService, authService)
	notificationHandler := handler.NewNotificationHandler(notificationService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{appURL, "http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Uploaded files served straight from disk storage
	router.Static("/files", envOr("STORAGE_DIR", "./uploads"))

	// Register API Routes
	api := router.Group("/api")
	authHandler.RegisterRoutes(api)
	dealHandler.RegisterRoutes(api)
	documentHandler.RegisterRoutes(api)
	notificationHandler.RegisterRoutes(api)

	port := envOr("PORT", "8080")
	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
