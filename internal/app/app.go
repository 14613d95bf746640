package app

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nivobank/nivo/internal/cache"
	"github.com/nivobank/nivo/internal/config"
	"github.com/nivobank/nivo/internal/env"
	"github.com/nivobank/nivo/internal/errHandler"
	"github.com/nivobank/nivo/internal/file"
	"github.com/nivobank/nivo/internal/helper"
	"github.com/nivobank/nivo/internal/identity"
	"github.com/nivobank/nivo/internal/notifier"
	"github.com/nivobank/nivo/internal/otp"
	"github.com/nivobank/nivo/internal/pin"
	"github.com/nivobank/nivo/internal/provision"
	"github.com/nivobank/nivo/internal/repository"
	"github.com/nivobank/nivo/internal/session"
	"github.com/nivobank/nivo/internal/signup"
	"github.com/nivobank/nivo/internal/smtp"
	"github.com/nivobank/nivo/internal/stream"
)

// Essential services and resources are exposed to the application
// this makes it possible for methods to have access to these items when they need them
type Application struct {
	Config       config.Config
	DB           repository.Database
	Redis        *redis.Client
	Sessions     *session.Store
	Signup       *signup.Machine
	Pin          *pin.Security
	Logger       *slog.Logger
	Mailer       *smtp.Mailer
	WG           sync.WaitGroup
	errorHandler *errHandler.ErrorHandler
	Helper       *helper.HelperRepository
	Kafka        *stream.KafkaStream
	FileUploader *file.FileUploader
}

func NewApplication(logger *slog.Logger) (*Application, error) {
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", "error", err)
	}

	var cfg config.Config

	// config values are loaded from the .env file
	// Default values are provided for these items and these should strictly be values for development mode only
	// make sure no production-level value is exposed as default value here
	cfg.BaseURL = env.GetString("BASE_URL", "http://localhost:4444")
	cfg.HttpPort = env.GetInt("HTTP_PORT", 4444)

	cfg.Db.Dsn = env.GetString("DB_DSN", "user:pass@localhost:5432/db")
	cfg.Db.Automigrate = env.GetBool("DB_AUTOMIGRATE", true)

	cfg.Redis.Addr = env.GetString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.DB = env.GetInt("REDIS_DB", 0)

	cfg.Jwt.SecretKey = env.GetString("JWT_SECRET_KEY", "ajf5nx3qmp6zquevllxocxqvyz42ypuo")

	cfg.Signup.SessionTTLMinutes = env.GetInt("SIGNUP_SESSION_TTL_MINUTES", 30)
	cfg.Signup.OtpTTLSeconds = env.GetInt("SIGNUP_OTP_TTL_SECONDS", 300)

	// server errors won't be sent via email if the NOTIFICATIONS_EMAIL wasn't set in the .env file
	cfg.Notifications.Email = env.GetString("NOTIFICATIONS_EMAIL", "")

	cfg.Smtp.Host = env.GetString("SMTP_HOST", "example.smtp.host")
	cfg.Smtp.Port = env.GetInt("SMTP_PORT", 25)
	cfg.Smtp.Username = env.GetString("SMTP_USERNAME", "example_username")
	cfg.Smtp.Password = env.GetString("SMTP_PASSWORD", "pa55word")
	cfg.Smtp.From = env.GetString("SMTP_FROM", "Nivo <no_reply@nivobank.example>")

	cfg.KafkaServers = env.GetString("KAFKA_SERVERS", "localhost:9092")

	cfg.FileUploader.ApiKey = env.GetString("CLOUDINARY_API_KEY", "")
	cfg.FileUploader.CloudName = env.GetString("CLOUDINARY_CLOUD_NAME", "")
	cfg.FileUploader.ApiSecret = env.GetString("CLOUDINARY_API_SECRET", "")

	db, err := repository.New(cfg.Db.Dsn, cfg.Db.Automigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := cache.New(cfg.Redis.Addr, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	mailer, err := smtp.NewMailer(cfg.Smtp.Host, cfg.Smtp.Port, cfg.Smtp.Username, cfg.Smtp.Password, cfg.Smtp.From)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	errorHandler := errHandler.New(cfg.Notifications.Email, cfg.BaseURL, mailer, logger)

	kafkaStream := stream.New(cfg.KafkaServers)

	fileUploader := file.New(cfg.FileUploader.CloudName, cfg.FileUploader.ApiKey, cfg.FileUploader.ApiSecret)

	sessions := session.NewStore(redisClient, time.Duration(cfg.Signup.SessionTTLMinutes)*time.Minute)

	pinSecurity := pin.NewSecurity(db.User())

	registry := identity.NewRegistry(db.Identity())

	otpGenerator := otp.New(otp.DefaultLength, time.Duration(cfg.Signup.OtpTTLSeconds)*time.Second)

	provisioner := provision.New(db, pinSecurity, sessions)

	machine := signup.NewMachine(sessions, registry, otpGenerator,
		notifier.NewLogNotifier(logger), provisioner, kafkaStream, logger)

	app := &Application{
		Config:       cfg,
		DB:           db,
		Redis:        redisClient,
		Sessions:     sessions,
		Signup:       machine,
		Pin:          pinSecurity,
		Logger:       logger,
		Mailer:       mailer,
		errorHandler: errorHandler,
		Kafka:        kafkaStream,
		FileUploader: fileUploader,
	}

	app.Helper = helper.New(&app.Config.BaseURL, &app.WG, errorHandler)

	return app, nil
}
