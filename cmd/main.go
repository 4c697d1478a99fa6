// cmd/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/config"
	"github.com/korrelate/ingestcore/internal/events"
	"github.com/korrelate/ingestcore/internal/ingest"
	"github.com/korrelate/ingestcore/internal/logger"
	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/processing"
	"github.com/korrelate/ingestcore/internal/profile"
	"github.com/korrelate/ingestcore/internal/queue"
	"github.com/korrelate/ingestcore/internal/search"
	"github.com/korrelate/ingestcore/internal/store"
	"github.com/korrelate/ingestcore/internal/sync"
	"github.com/korrelate/ingestcore/internal/telemetry"
	"github.com/korrelate/ingestcore/middleware"
	"github.com/korrelate/ingestcore/routes"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	if cfg.OTelEnabled {
		shutdownTracer, err := telemetry.InitTracer(cfg.OTelServiceName, cfg.OTelCollectorAddr)
		if err != nil {
			log.Printf("⚠️  Failed to initialize tracing: %v", err)
		} else {
			defer shutdownTracer()
			log.Println("✅ OpenTelemetry tracing initialized")
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Printf("⚠️  Failed to initialize metrics: %v", err)
	} else {
		log.Println("✅ Metrics collection initialized")
	}

	logger.InitLogger(cfg)
	logger.Info("Application starting", "gin_mode", cfg.GinMode, "port", cfg.Port)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatal("Failed to create upload directory:", err)
	}

	// Collaborators

	st := store.New(mongoClient, cfg.DBName)
	bus := events.New()
	bus.OnDrop(func(t model.EventType) {
		if metrics != nil {
			metrics.RecordEventDropped(string(t))
		}
		logger.Warn("event subscriber dropped", "eventType", t)
	})
	dedup := ingest.NewDedupStore(st)
	resolver := profile.NewResolver(st)

	if err := seedDefaultProfile(st, cfg); err != nil {
		logger.Error("failed to seed default profile", "error", err)
	}

	embedCtx, embedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	embedder, err := collab.NewEmbedder(embedCtx, cfg)
	embedCancel()
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}

	var vectorIndex collab.VectorIndex
	switch cfg.VectorProvider {
	case config.VectorProviderExternal:
		vectorIndex, err = collab.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			log.Fatal("Failed to initialize Qdrant vector index:", err)
		}
		logger.Info("vector index: external-hybrid (qdrant)", "addr", cfg.QdrantURL)
	default:
		vectorIndex = collab.NewMongoCosineIndex(st.AllCompletedChunks)
		logger.Info("vector index: relational-with-vector-ext (mongo cosine)")
	}

	sm := processing.NewStateMachine(st, bus)
	fastLane := processing.NewFastLaneProcessor(st, st, sm, embedder)
	reconciler := processing.NewCallbackReconciler(st, st, sm, embedder)
	pq := queue.New(redisOpt, rdb)
	defer pq.Close()
	dispatcher := processing.NewDispatcher(fastLane, pq, sm)
	hybrid := search.NewHybridSearch(st, vectorIndex, embedder, cfg.RRFK)

	var remote sync.RemoteClient
	if cfg.GoogleOAuthToken != "" {
		remote, err = sync.NewDriveClient(context.Background(), cfg.GoogleOAuthToken)
		if err != nil {
			logger.Error("failed to initialize remote folder client, sync disabled", "error", err)
		}
	}
	var folderSync *sync.FolderSynchronizer
	if remote != nil {
		folderSync = sync.NewFolderSynchronizer(st, st, resolver, sm, dispatcher, remote, bus, cfg.UploadDir)
	}

	// Route handlers

	docHandlers := routes.NewDocumentHandlers(st, dedup, resolver, dispatcher, bus, cfg.UploadDir)
	searchHandlers := routes.NewSearchHandlers(hybrid)
	callbackHandlers := routes.NewCallbackHandlers(reconciler, pq)
	profileHandlers := routes.NewProfileHandlers(st)
	adminHandlers := routes.NewAdminHandlers(pq)
	var bindingHandlers *routes.BindingHandlers
	if folderSync != nil {
		bindingHandlers = routes.NewBindingHandlers(st, folderSync)
	}

	// Periodic remote sync

	if folderSync != nil && cfg.RemoteSyncIntervalCron != "" {
		scheduler := gocron.NewScheduler(time.UTC)
		_, err := scheduler.Cron(cfg.RemoteSyncIntervalCron).Do(func() {
			ctx := context.Background()
			bindings, err := st.ListBindings(ctx)
			if err != nil {
				logger.Error("periodic sync: failed to list bindings", "error", err)
				return
			}
			for _, b := range bindings {
				if !b.Enabled {
					continue
				}
				if _, err := folderSync.Sync(ctx, b.ID); err != nil {
					logger.Error("periodic sync failed", "bindingId", b.ID, "error", err)
				}
			}
		})
		if err != nil {
			logger.Error("failed to schedule periodic remote sync", "error", err)
		} else {
			scheduler.StartAsync()
			logger.Info("periodic remote sync scheduled", "cron", cfg.RemoteSyncIntervalCron)
		}
	}

	// Queue retention sweep: completed jobs kept 1h or last 1000 (whichever
	// larger), failed jobs kept 24h, per the ProcessingQueue retention policy.
	{
		retentionScheduler := gocron.NewScheduler(time.UTC)
		_, err := retentionScheduler.Every(15).Minutes().Do(func() {
			completedDeleted, failedDeleted, err := pq.Sweep(context.Background())
			if err != nil {
				logger.Error("queue retention sweep failed", "error", err)
				return
			}
			logger.Info("queue retention sweep complete", "completedDeleted", completedDeleted, "failedDeleted", failedDeleted)
		})
		if err != nil {
			logger.Error("failed to schedule queue retention sweep", "error", err)
		} else {
			retentionScheduler.StartAsync()
			logger.Info("queue retention sweep scheduled", "interval", "15m")
		}
	}

	// Gin router

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered", "error", recovered, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error_code": "internal_error",
			"message":    "An unexpected error occurred",
		})
		c.Abort()
	}))

	router.MaxMultipartMemory = cfg.MaxFileSize

	if cfg.OTelEnabled {
		router.Use(otelgin.Middleware(cfg.OTelServiceName))
	}

	if metrics != nil {
		router.Use(func(c *gin.Context) {
			start := time.Now()
			c.Next()
			metrics.RecordRequest(c.Request.Method, c.FullPath(), http.StatusText(c.Writer.Status()), time.Since(start).Seconds())
		})
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestSizeLimit(10 << 20))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		health := gin.H{"status": "healthy", "timestamp": time.Now()}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			health["status"] = "unhealthy"
			health["mongodb"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["mongodb"] = "healthy"

		if err := rdb.Ping(ctx).Err(); err != nil {
			health["status"] = "unhealthy"
			health["redis"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["redis"] = "healthy"

		c.JSON(http.StatusOK, health)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mongoClient.Ping(ctx, nil); err != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	// /internal/callback is intentionally mounted outside the API-key group:
	// the heavy worker is a trusted in-cluster peer, never an external caller.
	router.POST("/internal/callback", callbackHandlers.Report)

	api := router.Group("/")
	api.Use(middleware.APIKeyMiddleware(cfg.APIKey))
	{
		api.POST("/documents", docHandlers.Upload)
		api.GET("/documents", docHandlers.List)
		api.GET("/documents/:id", docHandlers.Get)
		api.GET("/documents/:id/chunks", docHandlers.Chunks)

		api.POST("/search", searchHandlers.Search)

		api.GET("/profiles", profileHandlers.List)
		api.POST("/profiles", profileHandlers.Create)
		api.GET("/profiles/:id", profileHandlers.Get)
		api.PUT("/profiles/:id", profileHandlers.Update)
		api.DELETE("/profiles/:id", profileHandlers.Delete)

		if bindingHandlers != nil {
			api.GET("/bindings", bindingHandlers.List)
			api.POST("/bindings", bindingHandlers.Create)
			api.GET("/bindings/:id", bindingHandlers.Get)
			api.DELETE("/bindings/:id", bindingHandlers.Delete)
			api.POST("/bindings/:id/sync", bindingHandlers.Sync)
		}

		api.GET("/admin/queue-stats", adminHandlers.QueueStats)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// seedDefaultProfile ensures the bundled default profile exists in the store,
// overriding its quality noise thresholds from config so QUALITY_NOISE_WARN /
// QUALITY_NOISE_REJECT actually take effect rather than the pure function's
// hardcoded literals.
func seedDefaultProfile(st *store.Store, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := st.GetProfile(ctx, "default"); err == nil {
		return nil
	} else if err != store.ErrNotFound {
		return err
	}

	def := defaultProfileFromConfig(cfg)
	return st.InsertProfile(ctx, &def)
}

// defaultProfileFromConfig layers the deployment's env-configured quality
// thresholds onto the bundled baseline profile.
func defaultProfileFromConfig(cfg *config.Config) model.ProcessingProfile {
	def := model.DefaultProfile()
	def.Quality.MinChars = cfg.QualityMinChars
	def.Quality.NoiseWarnThreshold = cfg.QualityNoiseWarn
	def.Quality.NoiseRejectThreshold = cfg.QualityNoiseReject
	def.Chunking.TargetChars = cfg.MaxChunkSize
	def.Chunking.OverlapChars = cfg.ChunkOverlap
	def.Embedding.Dimension = cfg.EmbeddingDimension
	return def
}
