package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lexadvise/consult-bookings/internal/availability"
	"github.com/lexadvise/consult-bookings/internal/calendar"
	"github.com/lexadvise/consult-bookings/internal/domain"
	"github.com/lexadvise/consult-bookings/internal/handlers"
	"github.com/lexadvise/consult-bookings/internal/mailer"
	"github.com/lexadvise/consult-bookings/internal/notify"
	"github.com/lexadvise/consult-bookings/internal/payments"
	"github.com/lexadvise/consult-bookings/internal/ratelimit"
	"github.com/lexadvise/consult-bookings/internal/repository"
	"github.com/lexadvise/consult-bookings/internal/service"
	"github.com/lexadvise/consult-bookings/pkg/config"
	"github.com/lexadvise/consult-bookings/pkg/database"
	"github.com/lexadvise/consult-bookings/pkg/events"
	"github.com/lexadvise/consult-bookings/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := newRedisClient(cfg.Redis)
	defer rdb.Close()

	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	consultationRepo := repository.NewConsultationRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)

	if err := seedConsultationTypes(ctx, consultationRepo); err != nil {
		logger.Error("failed to seed consultation types", "error", err)
		os.Exit(1)
	}

	provider := calendar.NewGoogleProvider(cfg.Calendar)
	razorpayGW := payments.NewRazorpayGateway(cfg.Razorpay)
	paypalGW := payments.NewPayPalGateway(cfg.PayPal)

	resolver := availability.NewResolver(bookingPolicy(cfg.Booking))
	availabilitySvc := service.NewAvailabilityService(resolver, provider)
	bookingSvc := service.NewBookingService(bookingRepo, clientRepo, consultationRepo, paymentRepo, bus, cfg.Booking.HoldTTL)
	paymentSvc := service.NewPaymentService(paymentRepo, bookingRepo, consultationRepo, bookingSvc, razorpayGW, paypalGW, bus)

	worker := notify.NewWorker(bus, provider, newMailer(cfg.Email, cfg.SiteURL), bookingRepo, consultationRepo)
	if err := worker.Start(); err != nil {
		logger.Error("failed to start notify worker", "error", err)
		os.Exit(1)
	}

	writeLimiter := ratelimit.New(rdb, ratelimit.Config{
		Requests: 10,
		Window:   time.Minute,
		KeyFunc:  ratelimit.ClientIPKeyFunc,
	})

	h := handlers.New(availabilitySvc, bookingSvc, paymentSvc, consultationRepo, cfg.Auth.JWTSecret)
	router := handlers.NewRouter(h, writeLimiter, []string{cfg.SiteURL})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	// Periodic reclaim of lapsed reservation holds. The create path
	// also reclaims lazily; this keeps idle slots from staying dark.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Booking.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := bookingSvc.ExpireStaleHolds(gctx); err != nil {
					logger.Error("hold sweep failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, falling back to localhost", "error", err)
		opt = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	return redis.NewClient(opt)
}

func newMailer(cfg config.EmailConfig, siteURL string) mailer.Service {
	if cfg.DevMode || cfg.MailerSendKey == "" {
		logger.Info("using dev mailer, emails will be logged instead of sent")
		return mailer.NewDevService()
	}
	return mailer.NewMailerSendService(cfg, siteURL)
}

func bookingPolicy(cfg config.BookingConfig) availability.Policy {
	policy := availability.DefaultPolicy()
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		policy.Location = loc
	} else {
		logger.Warn("unknown working-hours timezone, keeping default", "timezone", cfg.Timezone)
	}
	policy.StartHour = cfg.WorkingHoursStart
	policy.EndHour = cfg.WorkingHoursEnd
	policy.SlotDuration = cfg.SlotDuration
	policy.Buffer = cfg.SlotBuffer
	return policy
}

func seedConsultationTypes(ctx context.Context, repo repository.ConsultationRepository) error {
	seeds := []domain.ConsultationType{
		{
			Category:        domain.ConsultationAudioCall,
			Name:            "Audio Consultation",
			Description:     "A 30-minute phone consultation with the attorney.",
			DurationMinutes: 30,
			Amount:          500000,
			Currency:        "INR",
		},
		{
			Category:        domain.ConsultationDocumentReview,
			Name:            "Document Review",
			Description:     "Written review of your documents with emailed feedback.",
			DurationMinutes: 0,
			Amount:          1000000,
			Currency:        "INR",
		},
	}

	for i := range seeds {
		if err := repo.UpsertByCategory(ctx, &seeds[i]); err != nil {
			return err
		}
	}
	return nil
}
