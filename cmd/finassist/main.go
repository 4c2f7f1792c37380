// Command finassist runs the WhatsApp financial assistant: webhook API,
// conversation engine, Open Finance endpoints and the nudge scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/joselpq/whatsapp-integration-sub000/internal/advisor"
	"github.com/joselpq/whatsapp-integration-sub000/internal/api"
	"github.com/joselpq/whatsapp-integration-sub000/internal/conversation"
	"github.com/joselpq/whatsapp-integration-sub000/internal/dedup"
	"github.com/joselpq/whatsapp-integration-sub000/internal/genai"
	"github.com/joselpq/whatsapp-integration-sub000/internal/lockfile"
	"github.com/joselpq/whatsapp-integration-sub000/internal/messaging"
	"github.com/joselpq/whatsapp-integration-sub000/internal/metrics"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/nudge"
	"github.com/joselpq/whatsapp-integration-sub000/internal/openfinance"
	"github.com/joselpq/whatsapp-integration-sub000/internal/scheduler"
	"github.com/joselpq/whatsapp-integration-sub000/internal/store"
	"github.com/joselpq/whatsapp-integration-sub000/internal/util"
	"github.com/joselpq/whatsapp-integration-sub000/internal/whatsapp"
)

const (
	// DefaultStateDir is the default directory for assistant state data.
	DefaultStateDir = "/var/lib/finassist"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "finassist.db"
)

// Config holds environment configuration.
type Config struct {
	StateDir    string `env:"FINASSIST_STATE_DIR"`
	DatabaseURL string `env:"DATABASE_URL"`
	APIAddr     string `env:"API_ADDR" envDefault:":8080"`
	Transport   string `env:"MESSAGING_TRANSPORT" envDefault:"cloud"`

	// Meta Cloud API
	WhatsAppToken        string `env:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneID      string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WebhookVerifyToken   string `env:"WEBHOOK_VERIFY_TOKEN"`
	ReengagementTemplate string `env:"REENGAGEMENT_TEMPLATE"`

	// Twilio (fallback transport)
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`

	// Personal device transport
	WhatsAppDBDSN string `env:"WHATSAPP_DB_DSN"`

	OpenAIKey string `env:"OPENAI_API_KEY"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	PluggyClientID     string `env:"PLUGGY_CLIENT_ID"`
	PluggyClientSecret string `env:"PLUGGY_CLIENT_SECRET"`

	NudgeCron string `env:"NUDGE_CRON" envDefault:"0 14 * * *"`
}

func main() {
	initializeLogger()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	qrOutput := flag.String("qr-output", "", "path to write the WhatsApp login QR code (device transport)")
	numericCode := flag.Bool("numeric-code", false, "print a numeric login code instead of a QR code (device transport)")
	flag.Parse()

	if err := run(cfg, *qrOutput, *numericCode); err != nil {
		slog.Error("finassist failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("finassist exited successfully")
}

func initializeLogger() {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No FINASSIST_STATE_DIR set, using default", "state_dir", cfg.StateDir)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL set, using SQLite in state dir", "dsn", cfg.DatabaseURL)
	}
	return cfg, nil
}

func run(cfg Config, qrOutput string, numericCode bool) error {
	lock, err := lockfile.AcquireLock(cfg.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()

	genaiClient, err := genai.NewClient(genai.WithAPIKey(cfg.OpenAIKey))
	if err != nil {
		return fmt.Errorf("failed to create GenAI client: %w", err)
	}
	advisorSvc := advisor.NewService(st, genaiClient,
		advisor.WithFallbackCounter(m.AdvisorFallbacks))

	transport, window, device, err := buildTransport(cfg, qrOutput, numericCode)
	if err != nil {
		return err
	}
	if device != nil {
		defer device.Disconnect()
	}
	messenger := messaging.NewRecordingService(transport, st,
		messaging.WithSentCounter(m.MessagesSent.WithLabelValues(cfg.Transport)))

	dd := buildDeduplicator(cfg)
	defer dd.Close()

	detector := conversation.NewDetector(st)
	orchestrator := conversation.NewOrchestrator(detector, st, messenger,
		conversation.NewWelcomeHandler(messenger),
		conversation.NewGoalDiscoveryHandler(detector, advisorSvc, messenger, st),
		conversation.NewMonthlyExpensesHandler(advisorSvc, messenger, st),
		conversation.NewCompleteHandler(),
	)

	var pluggy api.OpenFinanceClient
	if cfg.PluggyClientID != "" {
		client, err := openfinance.NewClient(openfinance.WithCredentials(cfg.PluggyClientID, cfg.PluggyClientSecret))
		if err != nil {
			return fmt.Errorf("failed to create Open Finance client: %w", err)
		}
		pluggy = client
	} else {
		slog.Info("Open Finance disabled, PLUGGY_CLIENT_ID not set")
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if util.ParseBoolEnv("NUDGE_ENABLED", true) {
		nudgeSvc := nudge.NewService(st, messenger)
		if err := sched.AddJob(cfg.NudgeCron, func() {
			nudgeSvc.Sweep(context.Background())
		}); err != nil {
			return fmt.Errorf("invalid nudge cron expression %q: %w", cfg.NudgeCron, err)
		}
	} else {
		slog.Info("Nudge sweep disabled via NUDGE_ENABLED")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if device != nil {
		go pumpDeviceEvents(ctx, device, st, orchestrator)
	}

	server := api.NewServer(st, orchestrator, window, dd, m, pluggy,
		api.WithAddr(cfg.APIAddr),
		api.WithVerifyToken(cfg.WebhookVerifyToken),
	)

	slog.Info("finassist starting", "transport", cfg.Transport, "addr", cfg.APIAddr)
	return server.Run(ctx)
}

func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildTransport creates the outbound delivery service selected by
// MESSAGING_TRANSPORT. Only the Cloud API transport tracks the 24-hour
// window; only the device transport yields a client with inbound events.
func buildTransport(cfg Config, qrOutput string, numericCode bool) (messaging.Service, api.WindowRecorder, *whatsapp.Client, error) {
	switch cfg.Transport {
	case "cloud":
		opts := []messaging.CloudAPIOption{
			messaging.WithCloudCredentials(cfg.WhatsAppToken, cfg.WhatsAppPhoneID),
		}
		if cfg.ReengagementTemplate != "" {
			opts = append(opts, messaging.WithReengagementTemplate(cfg.ReengagementTemplate))
		}
		svc, err := messaging.NewCloudAPIService(opts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create Cloud API transport: %w", err)
		}
		return svc, svc, nil, nil

	case "twilio":
		svc, err := messaging.NewTwilioService(
			messaging.WithAccountSID(cfg.TwilioAccountSID),
			messaging.WithAuthToken(cfg.TwilioAuthToken),
			messaging.WithFromWhats(cfg.TwilioFromNumber),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create Twilio transport: %w", err)
		}
		return svc, nil, nil, nil

	case "device":
		waOpts := []whatsapp.Option{whatsapp.WithDBDSN(cfg.WhatsAppDBDSN)}
		if qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(qrOutput))
		}
		if numericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create device transport: %w", err)
		}
		return messaging.NewDeviceService(client), nil, client, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown MESSAGING_TRANSPORT %q (want cloud, twilio or device)", cfg.Transport)
	}
}

// pumpDeviceEvents feeds inbound device-session messages to the conversation
// engine. It mirrors what the webhook handler does for Cloud API events.
func pumpDeviceEvents(ctx context.Context, client *whatsapp.Client, st store.Store, engine *conversation.Orchestrator) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.Incoming():
			phone := "+" + evt.From
			user, err := st.GetUserByPhone(phone)
			if err != nil {
				slog.Error("Device event user lookup failed", "error", err, "phone", phone)
				continue
			}
			now := time.Now().UTC()
			if user == nil {
				created := models.User{ID: util.NewUserID(), PhoneNumber: phone, CreatedAt: now, UpdatedAt: now}
				if err := st.SaveUser(created); err != nil {
					slog.Error("Device event user create failed", "error", err, "phone", phone)
					continue
				}
				user = &created
			}
			if err := st.SaveMessage(models.Message{
				ID:         util.NewMessageID(),
				UserID:     user.ID,
				Direction:  models.DirectionInbound,
				Type:       models.MessageTypeText,
				Content:    evt.Body,
				ProviderID: evt.MessageID,
				Timestamp:  now,
			}); err != nil {
				slog.Error("Device event message persist failed", "error", err, "userID", user.ID)
			}
			engine.ProcessMessage(ctx, models.IncomingMessage{
				UserID:      user.ID,
				PhoneNumber: phone,
				Content:     evt.Body,
				Type:        models.MessageTypeText,
				ProviderID:  evt.MessageID,
				Timestamp:   now,
			})
		}
	}
}

func buildDeduplicator(cfg Config) dedup.Deduplicator {
	if cfg.RedisAddr == "" {
		slog.Info("Using in-memory webhook deduplication, REDIS_ADDR not set")
		return dedup.NewMemoryDeduplicator()
	}
	dd, err := dedup.NewRedisDeduplicator(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-memory deduplication", "error", err)
		return dedup.NewMemoryDeduplicator()
	}
	return dd
}
