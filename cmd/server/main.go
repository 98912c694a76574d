package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/choudian/document-QA-system/internal/api"
	"github.com/choudian/document-QA-system/internal/config"
	"github.com/choudian/document-QA-system/internal/database/kafka"
	"github.com/choudian/document-QA-system/internal/database/milvus"
	"github.com/choudian/document-QA-system/internal/database/mysql"
	redisdb "github.com/choudian/document-QA-system/internal/database/redis"
	"github.com/choudian/document-QA-system/internal/models"
	"github.com/choudian/document-QA-system/internal/rag/embeddings"
	"github.com/choudian/document-QA-system/internal/rag/llms"
	"github.com/choudian/document-QA-system/internal/rag/rerankers"
	"github.com/choudian/document-QA-system/internal/rag/splitters"
	"github.com/choudian/document-QA-system/internal/rag/vectorstore"
	"github.com/choudian/document-QA-system/internal/repository"
	"github.com/choudian/document-QA-system/internal/service"
	"github.com/choudian/document-QA-system/internal/storage"
	"github.com/choudian/document-QA-system/internal/task"
	"github.com/choudian/document-QA-system/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("server")
	appLogger.Info("日志初始化完成")

	// 基础设施连接
	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	if err := migrate(db); err != nil {
		appLogger.Fatal(err.Error())
	}
	appLogger.Info("数据库迁移完成")

	rdb, err := redisdb.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()

	store, err := storage.New(cfg)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	var auditPublisher *kafka.AuditPublisher
	if cfg.Databases.Kafka.Enabled {
		auditPublisher = kafka.NewAuditPublisher(&cfg.Databases.Kafka)
		defer auditPublisher.Close()
	}

	// 仓储层
	tenantRepo := repository.NewTenantRepository(db)
	userRepo := repository.NewUserRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	versionRepo := repository.NewDocumentVersionRepository(db)
	chunkRepo := repository.NewDocumentChunkRepository(db)
	docConfigRepo := repository.NewDocumentConfigRepository(db)
	configRepo := repository.NewConfigRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	if err := seedPermissions(ctx, db); err != nil {
		appLogger.Fatal(err.Error())
	}

	// RAG 组件
	configService := service.NewConfigService(configRepo)
	splitter := splitters.NewTextSplitter()
	embedder := embeddings.NewOpenAIProvider(configService)
	reranker := rerankers.NewDashScopeReranker(configService)
	llmClient := llms.NewOpenAIClient(configService)
	vectorStore, err := vectorstore.NewMilvusStore(milvusClient)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// 业务层
	tokenTTL := time.Duration(cfg.Auth.TokenTTL) * time.Second
	authService := service.NewAuthService(userRepo, tenantRepo, cfg.Auth.JwtSecret, tokenTTL)
	permissionService := service.NewPermissionService(userRepo, rdb)
	tenantService := service.NewTenantService(tenantRepo, userRepo)
	userService := service.NewUserService(userRepo, permissionService)
	folderService := service.NewFolderService(folderRepo, documentRepo)
	auditService := service.NewAuditService(auditRepo, auditPublisher)

	pipeline := service.NewVectorizationService(documentRepo, chunkRepo, docConfigRepo, store, splitter, embedder, vectorStore)
	runner := task.NewRunner(taskRepo, pipeline, &cfg.Worker)
	documentService := service.NewDocumentService(documentRepo, versionRepo, chunkRepo, docConfigRepo, folderRepo, configService, store, vectorStore, runner)
	retrievalService := service.NewRetrievalService(folderRepo, documentRepo, chunkRepo, configService, embedder, vectorStore, reranker)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)
	qaService := service.NewQAService(conversationService, messageRepo, conversationRepo, retrievalService, llmClient)

	if err := runner.Start(ctx); err != nil {
		appLogger.Fatal(err.Error())
	}
	defer runner.Stop()

	// HTTP 层
	handlers := &api.Handlers{
		Auth:        api.NewAuthAPI(authService, tenantService),
		Documents:   api.NewDocumentAPI(documentService),
		Folders:     api.NewFolderAPI(folderService),
		QA:          api.NewQAAPI(qaService, conversationService),
		Configs:     api.NewConfigAPI(configService),
		Admin:       api.NewAdminAPI(userService, tenantService, auditService),
		AuthService: authService,
		Permissions: permissionService,
		Audit:       auditService,
	}
	router := api.NewRouter(handlers, cfg)

	server := &http.Server{
		Addr:    cfg.App.Address,
		Handler: router,
	}
	go func() {
		appLogger.Info("HTTP 服务监听 " + cfg.App.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err.Error())
		}
	}()

	<-ctx.Done()
	appLogger.Info("收到退出信号，正在关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("HTTP 服务关闭异常")
	}
	if err := mysql.Close(); err != nil {
		appLogger.WithError(err).Error("关闭 MySQL 连接异常")
	}
	if err := redisdb.Close(); err != nil {
		appLogger.WithError(err).Error("关闭 Redis 连接异常")
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Permission{},
		&models.AuthRole{},
		&models.User{},
		&models.Folder{},
		&models.Document{},
		&models.DocumentVersion{},
		&models.DocumentChunk{},
		&models.DocumentConfig{},
		&models.UserRecentConfig{},
		&models.DocumentTask{},
		&models.ConfigEntry{},
		&models.Conversation{},
		&models.Message{},
		&models.AuditLog{},
	)
}

// seedPermissions 确保内置权限存在，已存在的跳过。
func seedPermissions(ctx context.Context, db *gorm.DB) error {
	for _, p := range service.DefaultPermissions() {
		var count int64
		if err := db.WithContext(ctx).Model(&models.Permission{}).Where("code = ?", p.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.WithContext(ctx).Create(p).Error; err != nil {
			return err
		}
	}
	return nil
}
