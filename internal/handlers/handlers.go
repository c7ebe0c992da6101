package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	analysis "github.com/CodeAndHammer/wordsprint/internal/analysis"
	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	events "github.com/CodeAndHammer/wordsprint/internal/events"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

func errorJSON(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": constants.StatusError, "message": message})
}

// experimentID reads the required experiment_id query parameter.
func experimentID(c *gin.Context) (string, bool) {
	id := c.Query("experiment_id")
	if id == "" {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeMissingQuery+": experiment_id")
		return "", false
	}
	return id, true
}

func loadEvents(app *models.App, c *gin.Context) ([]models.TrackEvent, bool) {
	id, ok := experimentID(c)
	if !ok {
		return nil, false
	}
	ctx := c.Request.Context()
	list, err := app.Store.ListTrackEvents(ctx, id)
	if err != nil {
		util.LogWarnCtx(ctx, "Failed to load events for %s: %v", id, err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return list, true
}

func TrackHandler(app *models.App, c *gin.Context) {
	ctx := c.Request.Context()

	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.LogWarnCtx(ctx, "Rejected track payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  constants.StatusError,
			"message": constants.ErrorCodeInvalidPayload,
			"detail":  err.Error(),
		})
		return
	}

	ev, err := events.NewTrackEvent(req, app.Clock())
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	row, err := app.Store.InsertTrackEvent(ctx, ev)
	if err != nil {
		util.LogWarnCtx(ctx, "Failed to store %s event for %s: %v", req.ActionType, req.UserID, err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	util.LogInfoCtx(ctx, "Tracked %s for %s (variant %s)", row.ActionType, row.UserID, row.Variant)
	c.JSON(http.StatusOK, gin.H{"status": constants.StatusSuccess, "data": []models.TrackEvent{row}})
}

func StatsHandler(app *models.App, c *gin.Context) {
	list, ok := loadEvents(app, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analysis.Analyze(list))
}

func PercentileHandler(app *models.App, c *gin.Context) {
	userTime, err := strconv.ParseFloat(c.Query("user_time"), 64)
	if err != nil || userTime < 0 {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeMissingQuery+": user_time")
		return
	}
	variant := models.Variant(c.Query("variant"))
	if !variant.Valid() {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeMissingQuery+": variant")
		return
	}
	list, ok := loadEvents(app, c)
	if !ok {
		return
	}

	pct, ok := analysis.Percentile(list, userTime, variant)
	if !ok {
		c.JSON(http.StatusOK, models.PercentileResponse{Status: constants.StatusError, Message: constants.ErrorCodeNoPercentile})
		return
	}
	c.JSON(http.StatusOK, pct)
}

// chartJSON encodes fig, answering 500 on failure.
func chartJSON(c *gin.Context, fig analysis.Figure) (string, bool) {
	out, err := fig.JSON()
	if err != nil {
		util.LogWarnCtx(c.Request.Context(), "Failed to encode chart: %v", err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return "", false
	}
	return out, true
}

func FunnelChartHandler(app *models.App, c *gin.Context) {
	list, ok := loadEvents(app, c)
	if !ok {
		return
	}
	stats := analysis.Analyze(list)
	if stats.Status != constants.StatusSuccess {
		c.JSON(http.StatusOK, models.ChartResponse{Status: constants.StatusError, Message: constants.ErrorCodeNotEnoughData})
		return
	}
	chart, ok := chartJSON(c, analysis.FunnelChart(*stats.VariantA, *stats.VariantB))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ChartResponse{Status: constants.StatusSuccess, Chart: chart})
}

func TimeDistributionHandler(app *models.App, c *gin.Context) {
	list, ok := loadEvents(app, c)
	if !ok {
		return
	}
	if len(list) == 0 {
		c.JSON(http.StatusOK, models.ChartResponse{Status: constants.StatusError, Message: constants.ErrorCodeNoData})
		return
	}
	chart, ok := chartJSON(c, analysis.TimeDistribution(list))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ChartResponse{Status: constants.StatusSuccess, Chart: chart})
}

func ComparisonChartsHandler(app *models.App, c *gin.Context) {
	list, ok := loadEvents(app, c)
	if !ok {
		return
	}
	stats := analysis.Analyze(list)
	if stats.Status != constants.StatusSuccess {
		c.JSON(http.StatusOK, models.ChartResponse{Status: constants.StatusError, Message: constants.ErrorCodeNotEnoughData})
		return
	}
	success, ok := chartJSON(c, analysis.SuccessRateChart(*stats.VariantA, *stats.VariantB))
	if !ok {
		return
	}
	avg, ok := chartJSON(c, analysis.AvgTimeChart(*stats.VariantA, *stats.VariantB))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ChartResponse{
		Status:           constants.StatusSuccess,
		SuccessRateChart: success,
		AvgTimeChart:     avg,
	})
}

func HealthHandler(app *models.App, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	status, code, database := constants.StatusOK, http.StatusOK, "ok"
	if err := app.Store.Ping(c.Request.Context()); err != nil {
		util.LogWarnCtx(c.Request.Context(), "Health check database ping failed: %v", err)
		status, code, database = constants.StatusError, http.StatusServiceUnavailable, constants.ErrorCodeStoreNotReady
	}

	c.JSON(code, gin.H{
		"status":          status,
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"database":        database,
		"database_driver": app.Store.Driver(),
		"active_limiters": limiterCount,
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func setWebhookCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", constants.WebhookAllowHeaders)
}

func WebhookPreflightHandler(c *gin.Context) {
	setWebhookCORS(c)
	c.String(http.StatusOK, constants.StatusOK)
}

// WebhookHandler stores one analytics platform event. Redelivery of a stored
// uuid is acknowledged without a second insert.
func WebhookHandler(app *models.App, c *gin.Context) {
	setWebhookCORS(c)
	ctx := c.Request.Context()

	var envelope models.WebhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		util.LogWarnCtx(ctx, "Rejected webhook body: %v", err)
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := events.FromWebhook(envelope.Event, app.Clock())
	if err != nil {
		util.LogWarnCtx(ctx, "Rejected webhook event: %v", err)
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	util.LogInfoCtx(ctx, "Received webhook event %q for %s at %s", ev.Event, ev.DistinctID, ev.Timestamp)

	row, err := app.Store.InsertWebhookEvent(ctx, ev)
	switch {
	case errors.Is(err, events.ErrDuplicateEvent):
		util.LogInfoCtx(ctx, "Event %s already stored, skipping", ev.UUID)
		c.JSON(http.StatusOK, gin.H{"status": constants.StatusOK, "message": constants.MessageDuplicateSkipped})
	case err != nil:
		util.LogWarnCtx(ctx, "Error inserting webhook event %s: %v", ev.UUID, err)
		errorJSON(c, http.StatusInternalServerError, err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"status": constants.StatusOK, "inserted": []models.WebhookEvent{row}})
	}
}
