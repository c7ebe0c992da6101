package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	ginGzip "github.com/gin-contrib/gzip"

	"github.com/gin-gonic/gin"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	events "github.com/CodeAndHammer/wordsprint/internal/events"
	handlers "github.com/CodeAndHammer/wordsprint/internal/handlers"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting wordsprint collector in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	store, err := events.Open(util.GetEnvString("DATABASE_URL", defaultDatabaseURL))
	if err != nil {
		util.LogFatal("Failed to open event store: %v", err)
	}
	defer store.Close()
	util.LogInfo("Connected to %s event store", store.Driver())

	app := &App{App: &models.App{
		Store:          store,
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		AllowedOrigins: util.GetEnvList("ALLOWED_ORIGINS", defaultAllowedOrigins),
	}}

	router := newRouter(app)

	app.startCleanupRoutines()

	app.startServer(router)
}

func newRouter(app *App) *gin.Engine {
	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	cors := app.corsMiddleware()
	router.POST(constants.RouteTrack, cors, app.rateLimitMiddleware(), app.trackHandler)
	router.OPTIONS(constants.RouteTrack, cors)
	router.GET(constants.RouteStats, cors, app.statsHandler)
	router.GET(constants.RouteUserPercentile, cors, app.percentileHandler)
	router.GET(constants.RouteFunnelChart, cors, app.funnelChartHandler)
	router.GET(constants.RouteTimeDistribution, cors, app.timeDistributionHandler)
	router.GET(constants.RouteComparisonCharts, cors, app.comparisonChartsHandler)
	router.GET(constants.RouteHealth, app.healthHandler)

	router.POST(constants.RouteWebhook, app.webhookHandler)
	router.OPTIONS(constants.RouteWebhook, handlers.WebhookPreflightHandler)

	return router
}

func (app *App) trackHandler(c *gin.Context) {
	handlers.TrackHandler(app.App, c)
}

func (app *App) statsHandler(c *gin.Context) {
	handlers.StatsHandler(app.App, c)
}

func (app *App) percentileHandler(c *gin.Context) {
	handlers.PercentileHandler(app.App, c)
}

func (app *App) funnelChartHandler(c *gin.Context) {
	handlers.FunnelChartHandler(app.App, c)
}

func (app *App) timeDistributionHandler(c *gin.Context) {
	handlers.TimeDistributionHandler(app.App, c)
}

func (app *App) comparisonChartsHandler(c *gin.Context) {
	handlers.ComparisonChartsHandler(app.App, c)
}

func (app *App) healthHandler(c *gin.Context) {
	handlers.HealthHandler(app.App, c)
}

func (app *App) webhookHandler(c *gin.Context) {
	handlers.WebhookHandler(app.App, c)
}

func (app *App) startServer(router *gin.Engine) {
	port := util.GetEnvString("PORT", defaultPort)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func (app *App) startCleanupRoutines() {
	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			app.cleanupStaleRateLimiters(time.Now())
		}
	}()

	util.LogInfo("Started cleanup routine for rate limiters")
}

func (app *App) cleanupStaleRateLimiters(now time.Time) int {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := now.Add(-app.RateLimiterTTL)
	removedCount := 0

	for key, entry := range app.LimiterMap {
		if entry.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if len(app.LimiterMap) > limiterSoftCap {
		util.LogInfo("Rate limiter map too large (%d entries), performing emergency cleanup", len(app.LimiterMap))

		if len(app.LimiterMap) > limiterHardCap {
			type limiterInfo struct {
				key        string
				lastAccess time.Time
			}

			var limiters []limiterInfo
			for key, entry := range app.LimiterMap {
				limiters = append(limiters, limiterInfo{key: key, lastAccess: entry.LastAccess})
			}

			sort.Slice(limiters, func(i, j int) bool {
				return limiters[i].lastAccess.Before(limiters[j].lastAccess)
			})

			entriesToRemove := len(limiters) / 2
			for i := 0; i < entriesToRemove; i++ {
				delete(app.LimiterMap, limiters[i].key)
				removedCount++
			}

			util.LogInfo("Removed %d oldest rate limiters", entriesToRemove)
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
	return removedCount
}
