package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quorumhq/quorum/internal/consensus"
	"github.com/quorumhq/quorum/internal/faults"
	"github.com/quorumhq/quorum/internal/flagging"
	"github.com/quorumhq/quorum/internal/notify"
	"github.com/quorumhq/quorum/internal/statusfix"
	"github.com/quorumhq/quorum/internal/task"
	"github.com/quorumhq/quorum/internal/validate"
)

// abortWithError maps the fault taxonomy onto HTTP status codes.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, faults.ErrMalformedInput):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, faults.ErrInvalidTransition):
		status = http.StatusBadRequest
	case errors.Is(err, faults.ErrFlagBlocked):
		status = http.StatusConflict
	case errors.Is(err, faults.ErrInsufficientAnnotators):
		status = http.StatusPreconditionFailed
	case errors.Is(err, faults.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func taskParam(c *gin.Context) (int, bool) {
	taskID, err := strconv.Atoi(c.Param("task"))
	if err != nil || !task.ValidTaskID(taskID) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return taskID, true
}

func handleGetDiscussion(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		disc, err := task.GetDiscussion(db, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, disc)
	}
}

func handleSubmitAnnotation(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		UserID string                 `json:"user_id" binding:"required"`
		Data   map[string]interface{} `json:"data" binding:"required"`
	}
	return func(c *gin.Context) {
		taskID, ok := taskParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		ann, err := task.SubmitAnnotation(db, c.Param("id"), req.UserID, taskID, req.Data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, ann)
	}
}

func handleGetAnnotations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID := 0
		if raw := c.Query("task"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid task filter"})
				return
			}
			taskID = n
		}
		anns, err := task.GetAnnotations(db, c.Param("id"), taskID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, anns)
	}
}

func handleGetConsensus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := taskParam(c)
		if !ok {
			return
		}
		cons, err := consensus.Get(db, c.Param("id"), taskID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cons)
	}
}

func handlePreviewConsensus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := taskParam(c)
		if !ok {
			return
		}
		agreement, err := consensus.Preview(db, c.Param("id"), taskID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if agreement == nil {
			c.JSON(http.StatusOK, gin.H{"agreement_rate": nil, "candidate": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agreement_rate": agreement.Rate,
			"fields":         agreement.Fields,
			"candidate":      agreement.Candidate,
		})
	}
}

func handlePutConsensus(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		Data     map[string]interface{} `json:"data" binding:"required"`
		Stars    int                    `json:"stars"`
		Comment  string                 `json:"comment"`
		AuthorID string                 `json:"author_id" binding:"required"`
	}
	return func(c *gin.Context) {
		taskID, ok := taskParam(c)
		if !ok {
			return
		}
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		cons, err := consensus.CreateOrOverride(db, c.Param("id"), taskID, req.Data, req.Stars, req.Comment, req.AuthorID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, cons)
	}
}

func handleAutoConsensus(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		DryRun    bool    `json:"dry_run"`
		Threshold float64 `json:"threshold"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		result, err := consensus.AutoCreate(db, consensus.AutoCreateOpts{
			DryRun:    req.DryRun,
			Threshold: req.Threshold,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleValidateDiscussion(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		errs, err := validate.Discussion(db, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if errs == nil {
			errs = []faults.ValidationError{}
		}
		c.JSON(http.StatusOK, gin.H{"errors": errs})
	}
}

func handleExportReady(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ready, err := validate.ExportReady(db, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"export_ready": ready})
	}
}

func handleExportBuckets(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		buckets, err := validate.ExportBuckets(db)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, buckets)
	}
}

func handleStatusFix(db *gorm.DB, notifier *notify.Notifier) gin.HandlerFunc {
	type request struct {
		DryRun bool `json:"dry_run"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		result, err := statusfix.Run(db, statusfix.Opts{DryRun: req.DryRun})
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !req.DryRun && result.Summary.Updated > 0 {
			notifier.Send(c.Request.Context(), notify.StatusFixEvent(result))
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleCreateFlag(db *gorm.DB, notifier *notify.Notifier) gin.HandlerFunc {
	type request struct {
		DiscussionID      string `json:"discussion_id" binding:"required"`
		TaskID            int    `json:"task_id"`
		Reason            string `json:"reason" binding:"required"`
		Category          string `json:"category" binding:"required"`
		FlaggedFromTaskID int    `json:"flagged_from_task_id"`
		WorkflowScenario  string `json:"workflow_scenario"`
		FlaggedBy         string `json:"flagged_by"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		flaggedBy := req.FlaggedBy
		if flaggedBy == "" {
			flaggedBy = c.GetHeader(UserHeader)
		}
		flag, err := flagging.FlagTask(db, flagging.FlagOpts{
			DiscussionID:      req.DiscussionID,
			TaskID:            req.TaskID,
			Reason:            req.Reason,
			Category:          req.Category,
			FlaggedFromTaskID: req.FlaggedFromTaskID,
			WorkflowScenario:  req.WorkflowScenario,
			FlaggedBy:         flaggedBy,
			Role:              c.GetHeader(RoleHeader),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		notifier.Send(c.Request.Context(), notify.FlagEvent(flag))
		c.JSON(http.StatusOK, flag)
	}
}

func handleListFlags(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := flagging.ListFilters{
			DiscussionID: c.Query("discussion_id"),
			Category:     c.Query("category"),
		}
		if raw := c.Query("resolved"); raw != "" {
			resolved := raw == "true"
			filters.Resolved = &resolved
		}
		flags, err := flagging.List(db, filters)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, flags)
	}
}

func handleResolveFlag(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid flag id"})
			return
		}
		if err := flagging.Resolve(db, uint(id), c.GetHeader(UserHeader)); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resolved": true})
	}
}
