package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"evalboard/internal/ai"
	appsvc "evalboard/internal/app"
	"evalboard/internal/blob"
	"evalboard/internal/bootstrap"
	"evalboard/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.StaticFile("/", "web/index.html")

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	extractService := buildExtractService(app)
	extractHandler := handler.NewExtractHandler(extractService)
	uploadHandler := handler.NewUploadHandler(app.Blob)

	router.POST("/upload", uploadHandler.Upload)
	router.POST("/extract", extractHandler.Extract)

	return router
}

func buildExtractService(app *bootstrap.App) *appsvc.ExtractService {
	llm := app.Config.LLM

	// A missing credential leaves the client nil: cache hits still work,
	// misses surface a configuration error instead of crashing at boot.
	var client appsvc.ExtractionClient
	if llm.APIKey != "" {
		switch llm.Provider {
		case "openai":
			client = ai.NewOpenAICompatibleClient(ai.ChatConfig{
				BaseURL: llm.BaseURL,
				APIKey:  llm.APIKey,
				Model:   llm.Model,
			})
		default:
			client = ai.NewGeminiClient(ai.GeminiConfig{
				BaseURL: llm.BaseURL,
				APIKey:  llm.APIKey,
				Model:   llm.Model,
			})
		}
	}

	return appsvc.NewExtractService(
		app.Cache,
		blob.NewFetcher(),
		blob.ErrNotFound,
		client,
		appsvc.ExtractServiceOptions{
			SendMode:    llm.SendMode,
			MaxAttempts: llm.MaxAttempts,
			BackoffSeed: time.Duration(llm.BackoffSeedMS) * time.Millisecond,
			ResultTTL:   time.Duration(app.Config.Redis.ResultTTLSeconds) * time.Second,
		},
	)
}
