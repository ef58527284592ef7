package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ledger-reconciliation-backend/internal/config"
	"ledger-reconciliation-backend/internal/models"
	"ledger-reconciliation-backend/internal/routes"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.InitDB()
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.BankTransaction{},
		&models.JournalEntry{},
		&models.ReconciliationMatch{},
		&models.EntryClaim{},
		&models.TransactionClaim{},
		&models.ReconciliationRun{},
		&models.AnomalyFlag{},
		&models.MatchAuditLog{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	cfgPath := os.Getenv("MATCHING_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/matching.yaml"
	}
	cfg, err := config.LoadMatching(cfgPath)
	if err != nil {
		logger.Fatal("matching config invalid", zap.Error(err))
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db, cfg, logger)

	if err := r.Run(":8080"); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
