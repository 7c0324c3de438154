package server

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quorumhq/quorum/internal/notify"
)

// RoleHeader and UserHeader carry the caller's role and identity, supplied
// by the identity provider in front of this service.
const (
	RoleHeader = "X-Quorum-Role"
	UserHeader = "X-Quorum-User"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, notifier *notify.Notifier) {
	api := router.Group("/api")

	api.GET("/discussions/:id", handleGetDiscussion(db))
	api.POST("/discussions/:id/tasks/:task/annotations", handleSubmitAnnotation(db))
	api.GET("/discussions/:id/annotations", handleGetAnnotations(db))

	api.GET("/discussions/:id/tasks/:task/consensus", handleGetConsensus(db))
	api.GET("/discussions/:id/tasks/:task/consensus/preview", handlePreviewConsensus(db))
	api.PUT("/discussions/:id/tasks/:task/consensus", handlePutConsensus(db))
	api.POST("/consensus/auto", handleAutoConsensus(db))

	api.GET("/discussions/:id/validation", handleValidateDiscussion(db))
	api.GET("/discussions/:id/export-ready", handleExportReady(db))
	api.GET("/export/buckets", handleExportBuckets(db))

	api.POST("/statusfix", handleStatusFix(db, notifier))

	api.POST("/flags", handleCreateFlag(db, notifier))
	api.GET("/flags", handleListFlags(db))
	api.POST("/flags/:id/resolve", handleResolveFlag(db))
}
