package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rtr-labs/repaircam/internal/chat"
	"github.com/rtr-labs/repaircam/internal/health"
	"github.com/rtr-labs/repaircam/internal/repair"
	"github.com/rtr-labs/repaircam/internal/session"
	"github.com/rtr-labs/repaircam/internal/vision"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideVisionClient(cfg *Config) *vision.Client {
	return vision.NewClient(vision.Config{
		OllamaURL: cfg.OllamaURL,
		Model:     cfg.OllamaModel,
		Timeout:   cfg.OllamaTimeout,
	})
}

func ProvideDetector(client *vision.Client, logger *slog.Logger) *vision.Detector {
	return vision.NewDetector(client, logger)
}

func ProvideStreamHandler(
	cfg *Config,
	detector *vision.Detector,
	frames *vision.Store,
	sessionStore *session.Store,
	metrics *session.Metrics,
	logger *slog.Logger,
) *vision.StreamHandler {
	return vision.NewStreamHandler(vision.StreamHandlerConfig{
		Detector:      detector,
		Frames:        frames,
		Sink:          sessionStore,
		Usage:         metrics,
		RateLimit:     cfg.RateLimit,
		MinConfidence: cfg.MinConfidence,
		Logger:        logger,
	})
}

func ProvideVisionHandler(detector *vision.Detector, frames *vision.Store, logger *slog.Logger) *vision.Handler {
	return vision.NewHandler(detector, frames, logger)
}

func ProvideSessionHandler(store *session.Store, metrics *session.Metrics, frames *vision.Store, logger *slog.Logger) *session.Handler {
	return session.NewHandler(store, metrics, frames, logger)
}

func ProvideRepairService(cfg *Config, detector *vision.Detector, logger *slog.Logger) *repair.Service {
	return repair.NewService(repair.ServiceConfig{
		YouTubeAPIKey: cfg.YouTubeAPIKey,
		Timeout:       cfg.SearchTimeout,
		Summarizer:    detector,
		Logger:        logger,
	})
}

func ProvideChatHandler(store *session.Store, detector *vision.Detector, service *repair.Service, logger *slog.Logger) *chat.Handler {
	return chat.NewHandler(store, detector, service, logger)
}

func ProvideRepairHandler(service *repair.Service, logger *slog.Logger) *repair.Handler {
	return repair.NewHandler(service, logger)
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, client *vision.Client, cfg *Config) *health.Handler {
	return health.NewHandler(db, redisClient, client, cfg.Version)
}

func metricsMiddleware(h *health.Handler) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementConnections()
			defer h.DecrementConnections()
			return next(c)
		}
	}
}

type HandlerParams struct {
	fx.In

	StreamHandler  *vision.StreamHandler
	VisionHandler  *vision.Handler
	SessionHandler *session.Handler
	ChatHandler    *chat.Handler
	RepairHandler  *repair.Handler
	HealthHandler  *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	e.Use(metricsMiddleware(params.HealthHandler))
	params.StreamHandler.RegisterRoutes(e)
	params.VisionHandler.RegisterRoutes(e)
	params.SessionHandler.RegisterRoutes(e)
	params.ChatHandler.RegisterRoutes(e)
	params.RepairHandler.RegisterRoutes(e)
	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideVisionClient,
		ProvideDetector,
		ProvideStreamHandler,
		ProvideVisionHandler,
		ProvideSessionHandler,
		ProvideChatHandler,
		ProvideRepairService,
		ProvideRepairHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
