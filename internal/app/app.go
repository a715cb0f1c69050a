package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/realtime"
	"taskboard/internal/repositories"
	"taskboard/internal/routes"
	"taskboard/internal/services"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "taskboard/docs"
)

func Run() {
	cfg := config.LoadConfig()
	middleware.SetJWTKey(cfg.Auth.JWTSecret)

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("failed to open database: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	// === Cache ===
	var boardCache cache.BoardCache = cache.Noop{}
	if cfg.Redis.Enabled {
		boardCache = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	eventRepo := repositories.NewEventRepository(db)

	// === Realtime ===
	hub := realtime.NewHub()
	publisher := services.NewEventPublisher(eventRepo, hub)

	// === Services ===
	authService := services.NewAuthService(userRepo)
	boardService := services.NewBoardService(groupRepo, taskRepo, boardCache)
	taskService := services.NewTaskService(taskRepo, groupRepo, userRepo, publisher, boardCache)
	eventService := services.NewEventService(eventRepo)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(authService)
	boardHandler := handlers.NewBoardHandler(boardService)
	taskHandler := handlers.NewTaskHandler(taskService)
	eventHandler := handlers.NewEventHandler(eventService, taskService)
	streamHandler := handlers.NewStreamHandler(hub, taskService,
		time.Duration(cfg.Stream.HeartbeatSeconds)*time.Second)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(
		router,
		authHandler,
		boardHandler,
		taskHandler,
		eventHandler,
		streamHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("server listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("server failed: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
