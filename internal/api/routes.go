package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/tix-calc/internal/api/handlers"
	"github.com/codyseavey/tix-calc/internal/config"
)

// SetupRouter builds the HTTP API. refresher may be nil, in which case the
// refresh endpoints are not registered.
func SetupRouter(cfg *config.Config, valuator handlers.DeckValuator, refresher handlers.RefreshQueue) *gin.Engine {
	router := gin.Default()
	router.Use(RequestID(), Metrics())

	frontendPath := cfg.FrontendDistPath
	serveFrontend := frontendPath != "" && dirExists(frontendPath)

	// CORS configuration - allow configured origins or use defaults
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	corsConfig.AllowCredentials = false
	router.Use(cors.New(corsConfig))

	decklistHandler := handlers.NewDecklistHandler(valuator)

	// API routes
	api := router.Group("/api")
	{
		api.GET("/calc", decklistHandler.Calculate)
		api.POST("/calc", decklistHandler.Calculate)
		api.POST("/parse", decklistHandler.Parse)

		if refresher != nil {
			refreshHandler := handlers.NewRefreshHandler(refresher)
			api.POST("/refresh", refreshHandler.QueueRefresh)
			api.GET("/refresh/status", refreshHandler.GetStatus)
		}
	}

	router.GET("/preview", decklistHandler.Preview)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(frontendPath, "index.html")

		// Serve static assets
		router.Static("/assets", filepath.Join(frontendPath, "assets"))

		// Serve root index.html
		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			path := c.Request.URL.Path

			// Don't serve index.html for API routes
			if strings.HasPrefix(path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}

			// Serve index.html for SPA routing
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
