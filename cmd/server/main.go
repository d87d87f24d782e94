package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sparkfund/services/identity-verification/internal/barcode"
	"sparkfund/services/identity-verification/internal/biometric"
	"sparkfund/services/identity-verification/internal/cache"
	"sparkfund/services/identity-verification/internal/config"
	"sparkfund/services/identity-verification/internal/crossvalidate"
	"sparkfund/services/identity-verification/internal/engine"
	"sparkfund/services/identity-verification/internal/events"
	"sparkfund/services/identity-verification/internal/gateway"
	"sparkfund/services/identity-verification/internal/httpapi"
	"sparkfund/services/identity-verification/internal/logger"
	"sparkfund/services/identity-verification/internal/metrics"
	"sparkfund/services/identity-verification/internal/ocrengine"
	"sparkfund/services/identity-verification/internal/store"
	"sparkfund/services/identity-verification/internal/vision"
)

func main() {
	cfg, err := config.Load(os.Getenv("APP_CONFIG_DIR"))
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Environment)
	log.WithFields(map[string]interface{}{
		"app":     cfg.App.Name,
		"env":     cfg.App.Environment,
		"version": cfg.App.Version,
	}).Info("starting identity-verification")

	kv := buildKeyValueStore(cfg, log)
	artifacts := store.NewMemoryArtifactStore()
	audit := buildAuditStore(cfg, log)
	blobs := buildBlobStore(cfg, log)
	visionModel := buildVisionModel(cfg)
	ocr := buildOCR(cfg)
	detector := buildFaceDetector(cfg)
	publisher := buildPublisher(cfg, log)
	collector := metrics.NewCollector()

	comps := engine.Components{
		Ocr:           ocrengine.NewComponent(ocr, cfg.Thresholds.OcrMaxDimPx, cfg.Thresholds.BackOcrMinDimPx),
		Back:          barcode.NewComponent(barcode.NewZxingReader(), visionModel, ocr),
		CrossValidate: crossvalidate.NewComponent(crossvalidate.Thresholds{
			CrossValidationThreshold: cfg.Thresholds.CrossValidationThreshold,
			AddressSimilarityPass:    cfg.Thresholds.AddressSimilarityPass,
			WeightToleranceLbs:       cfg.Thresholds.WeightToleranceLbs,
			HeightToleranceIn:        cfg.Thresholds.HeightToleranceIn,
		}),
		Biometric: biometric.NewComponent(detector, biometric.Thresholds{
			FaceMatchThreshold: cfg.Thresholds.FaceMatchThreshold,
			LivenessThreshold:  cfg.Thresholds.LivenessThreshold,
		}),
	}

	eng := engine.New(
		kv, artifacts, blobs, comps,
		cfg.Thresholds.OcrMaxDimPx, cfg.Thresholds.BackOcrMinDimPx,
		log,
		engine.WithPublisher(publisher),
		engine.WithMetrics(collector),
		engine.WithAuditStore(audit),
	)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.NewHandler(eng, log).Register(router.Group("/api/v1"))

	srv := &http.Server{Addr: ":8080", Handler: router}

	go func() {
		log.WithFields(map[string]interface{}{"addr": srv.Addr}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}
	if closer, ok := publisher.(*events.KafkaPublisher); ok {
		_ = closer.Close()
	}
	log.Info("exited")
}

func buildKeyValueStore(cfg *config.Config, log *logger.Logger) store.KeyValueStore {
	var kv store.KeyValueStore
	if cfg.Database.Host != "" {
		pg, err := store.NewPostgresStore(postgresDSN(cfg))
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		kv = pg
	} else {
		kv = store.NewMemoryStore()
	}
	if cfg.Redis.Enabled {
		kv = cache.New(kv, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	}
	return kv
}

func buildAuditStore(cfg *config.Config, log *logger.Logger) store.AuditStore {
	if cfg.Database.Host == "" {
		return store.NewMemoryAuditStore()
	}
	db, err := store.OpenGormDB(postgresDSN(cfg))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres for audit log")
	}
	gormAudit, err := store.NewGormAuditStore(db)
	if err != nil {
		log.WithError(err).Fatal("failed to migrate audit log table")
	}
	return gormAudit
}

func buildBlobStore(cfg *config.Config, log *logger.Logger) gateway.BlobStore {
	if cfg.Storage.Backend == "minio" {
		m, err := gateway.NewMinioBlobStore(
			cfg.Storage.Minio.Endpoint,
			cfg.Storage.Minio.AccessKey,
			cfg.Storage.Minio.SecretKey,
			cfg.Storage.Minio.Bucket,
			cfg.Storage.Minio.UseSSL,
		)
		if err != nil {
			log.WithError(err).Fatal("failed to construct minio blob store")
		}
		return m
	}
	return gateway.NewMemoryBlobStore()
}

func buildVisionModel(cfg *config.Config) vision.Model {
	if !cfg.Vision.Enabled {
		return vision.NoopModel{}
	}
	return vision.NewHTTPModel(cfg.Vision.Endpoint, cfg.Vision.APIKey, cfg.Vision.Timeout, cfg.Vision.MaxRetries)
}

func buildOCR(cfg *config.Config) ocrengine.Ocr {
	if cfg.Ocr.Backend == "tesseract" {
		return ocrengine.NewTesseractOCR(cfg.Ocr.Language)
	}
	return ocrengine.NoopOCR{}
}

func buildFaceDetector(cfg *config.Config) biometric.FaceDetector {
	if !cfg.FaceDetect.Enabled {
		return biometric.NoopFaceDetector{}
	}
	return biometric.NewHTTPFaceDetector(cfg.FaceDetect.Endpoint, cfg.FaceDetect.Timeout)
}

func buildPublisher(cfg *config.Config, log *logger.Logger) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NoopPublisher{}
	}
	p, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.TopicPrefix, log.Entry)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to kafka")
	}
	return p
}

func postgresDSN(cfg *config.Config) string {
	return "host=" + cfg.Database.Host +
		" user=" + cfg.Database.User +
		" password=" + cfg.Database.Password +
		" dbname=" + cfg.Database.Name +
		" sslmode=" + cfg.Database.SSLMode
}
