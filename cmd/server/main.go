// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cinematch-go/internal/config"
	"cinematch-go/internal/handler"
	"cinematch-go/internal/middleware"
	"cinematch-go/internal/service"
	"cinematch-go/pkg/ann"
	"cinematch-go/pkg/cache"
	"cinematch-go/pkg/catalog"
	"cinematch-go/pkg/embedding"
	"cinematch-go/pkg/log"
	"cinematch-go/pkg/storage"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 产物获取（可选）：本地缺失的产物从对象存储下载
	if cfg.Artifacts.MinIO.Enabled {
		storage.InitMinIO(cfg.Artifacts.MinIO)
		fetchCtx, cancelFetch := context.WithTimeout(context.Background(), 10*time.Minute)
		artifacts := []string{
			cfg.Model.ONNXPath,
			cfg.Model.TokenizerPath,
			cfg.Index.Path,
			cfg.Catalog.MappingPath,
		}
		for _, path := range artifacts {
			if err := storage.EnsureArtifact(fetchCtx, cfg.Artifacts.MinIO, path); err != nil {
				cancelFetch()
				log.Fatal("获取启动产物失败", err)
			}
		}
		cancelFetch()
	}

	// 4. 加载只读产物。这是进程中唯一的写阶段，顺序执行；
	// 任何一项失败都不会中止进程，而是让服务保持未就绪：
	// 健康检查照常工作，推荐接口返回 503。
	var (
		tokenizer service.TextTokenizer
		engine    service.Embedder
		index     service.VectorIndex
		mapper    service.CatalogResolver
	)

	if t, err := embedding.NewTokenizer(cfg.Model.TokenizerPath, cfg.Model.MaxSequenceLength); err != nil {
		log.Error("分词器加载失败, 服务将以降级模式启动", err)
	} else {
		tokenizer = t
	}

	if e, err := embedding.NewEngine(cfg.Model); err != nil {
		log.Error("推理引擎加载失败, 服务将以降级模式启动", err)
	} else {
		engine = e
		defer e.Close()
	}

	if ix, err := ann.Load(cfg.Index.Path, cfg.Model.Dimensions); err != nil {
		log.Error("向量索引加载失败, 服务将以降级模式启动", err)
	} else {
		index = ix
	}

	if m, err := catalog.Load(cfg.Catalog.MappingPath); err != nil {
		log.Error("目录映射加载失败, 服务将以降级模式启动", err)
	} else {
		mapper = m
	}

	// 5. 可选的查询向量缓存，默认关闭
	var vectorCache service.VectorCache
	if cfg.Cache.Enabled {
		vectorCache = cache.NewEmbeddingCache(cfg.Cache, cfg.Model.Dimensions)
	}

	// 6. 初始化 Service (依赖注入)
	recommendService := service.NewRecommendationService(
		tokenizer,
		engine,
		index,
		mapper,
		vectorCache,
		cfg.Index.SearchK,
		cfg.Recommend.DefaultTopK,
	)
	if recommendService.Readiness().Ready() {
		log.Info("全部启动产物加载完成, 服务就绪")
	} else {
		log.Warnf("部分启动产物缺失, 就绪检查将保持 503: %+v", recommendService.Readiness())
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), middleware.CORS(), gin.Recovery())

	// 8. 注册路由
	healthHandler := handler.NewHealthHandler(recommendService)
	recommendHandler := handler.NewRecommendHandler(recommendService)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", healthHandler.Health)
		apiV1.GET("/ready", healthHandler.Ready)
		apiV1.POST("/recommend", recommendHandler.Recommend)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
