package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/adapters/database"
	"github.com/clinicdesk/clinic-scheduling/internal/adapters/events"
	"github.com/clinicdesk/clinic-scheduling/internal/application/services"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/providers"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/calendar"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/notifications"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	"github.com/clinicdesk/clinic-scheduling/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	observability.InitLogger("clinic-scheduler", cfg.Environment)
	logger := observability.GetLogger()
	logger.Info().Str("environment", cfg.Environment).Msg("starting clinic scheduler")

	pg, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pg.Close()

	doctorRepo := database.NewDoctorAdapter(pg)
	contactRepo := database.NewContactAdapter(pg)
	appointmentRepo := database.NewAppointmentAdapter(pg)
	reminderRepo := database.NewReminderAdapter(pg)

	loc := cfg.Clinic.Location()

	// calendar sync runs over Redis pub/sub; when disabled the bus stays nil
	// and the booking path simply never publishes
	var eventBus providers.EventBus
	var calendarWorker *services.CalendarSyncWorker
	if cfg.Calendar.Enabled {
		rdb, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()

		calendarClient, err := calendar.NewGoogleCalendarClient(&cfg.Calendar)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize Google Calendar client")
		}

		eventBus = events.NewRedisEventBus(rdb)
		defer eventBus.Close()

		calendarWorker = services.NewCalendarSyncWorker(
			eventBus, calendarClient, appointmentRepo, doctorRepo, contactRepo,
			cfg.Clinic.Timezone, loc,
		)
	}

	scheduler := services.NewReminderScheduler(
		appointmentRepo,
		reminderRepo,
		entities.ReminderChannel(cfg.Clinic.DefaultReminderChannel),
		cfg.Reminders.SweepInterval,
		time.Now,
	)

	var messageSender providers.MessageSender
	if sender, err := notifications.NewWhatsAppCloudSender(&cfg.WhatsApp); err != nil {
		logger.Warn().Err(err).Msg("whatsapp sender not configured, whatsapp reminders will fail")
	} else {
		messageSender = sender
	}

	dispatcher := services.NewReminderDispatcher(
		reminderRepo, appointmentRepo, doctorRepo, contactRepo,
		messageSender, notifications.NewSMTPMailer(&cfg.SMTP),
		loc, cfg.Reminders.SweepInterval, cfg.Reminders.BatchSize, time.Now,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	if calendarWorker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := calendarWorker.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("calendar sync worker exited")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("clinic scheduler stopped")
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("shutdown timed out, exiting")
	}

	os.Exit(0)
}
