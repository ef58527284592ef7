package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-reconciliation-backend/internal/config"
	handler "ledger-reconciliation-backend/internal/handlers"
	"ledger-reconciliation-backend/internal/repository"
	"ledger-reconciliation-backend/internal/services/decision"
	"ledger-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Matching, log *zap.Logger) {
	entryRepo := repository.NewJournalEntryRepository(db)
	txRepo := repository.NewBankTransactionRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	runRepo := repository.NewRunRepository(db)
	anomalyRepo := repository.NewAnomalyRepository(db)

	engine := decision.NewEngine(cfg, matchRepo, entryRepo, txRepo, log)
	queue := decision.NewReviewQueue(cfg, matchRepo, entryRepo, entryRepo, txRepo, log)
	reconService := reconciliation.NewService(cfg, entryRepo, txRepo, runRepo, anomalyRepo, engine, log, 4)
	statsService := reconciliation.NewStatsService(matchRepo)

	reconHandler := handler.NewReconciliationHandler(reconService, queue, statsService)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.POST("/:statementId/run", reconHandler.Run)
	recon.GET("/review", reconHandler.GetPendingReview)
	recon.POST("/review/batch", reconHandler.BatchDecide)
	recon.POST("/review/ignore", reconHandler.BulkIgnore)
	recon.GET("/stats", reconHandler.GetStats)

	matches := api.Group("/matches")
	matches.POST("/:id/decide", reconHandler.Decide)
}
