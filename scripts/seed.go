package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/adapters/database"
	"github.com/clinicdesk/clinic-scheduling/internal/application/services"
	"github.com/clinicdesk/clinic-scheduling/internal/domain/entities"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/clients/postgres"
	"github.com/clinicdesk/clinic-scheduling/internal/infrastructure/observability"
	"github.com/clinicdesk/clinic-scheduling/pkg/config"
)

// Seeds a development database with an account's worth of doctors, contacts
// and a few appointments booked through the orchestrator so the gates run.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	observability.InitLogger("clinic-seed", cfg.Environment)

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				appointment_reminders,
				appointments,
				conversations,
				contacts,
				doctors
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	doctorRepo := database.NewDoctorAdapter(pgClient)
	contactRepo := database.NewContactAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)
	appointmentRepo := database.NewAppointmentAdapter(pgClient)
	reminderRepo := database.NewReminderAdapter(pgClient)

	loc := cfg.Clinic.Location()
	scheduler := services.NewReminderScheduler(
		appointmentRepo, reminderRepo,
		entities.ReminderChannel(cfg.Clinic.DefaultReminderChannel),
		cfg.Reminders.SweepInterval, time.Now,
	)
	appointmentService := services.NewAppointmentService(
		doctorRepo, contactRepo, conversationRepo, appointmentRepo, reminderRepo,
		scheduler, nil, loc, time.Now, cfg.AIAssistant.Enabled,
	)

	accountID := uuid.New().String()
	log.Printf("Seeding account %s", accountID)

	weekdays := entities.WorkingHours{
		"monday":    {Start: "09:00", End: "17:00"},
		"tuesday":   {Start: "09:00", End: "17:00"},
		"wednesday": {Start: "09:00", End: "17:00"},
		"thursday":  {Start: "09:00", End: "17:00"},
		"friday":    {Start: "09:00", End: "13:00"},
	}

	doctors := []*entities.Doctor{
		{
			ID: uuid.New().String(), AccountID: accountID,
			Name: "Dr. Amina Yusuf", Specialization: "Pediatrics",
			Email: "amina.yusuf@clinic.local", Phone: "+2348011111111",
			WorkingHours: weekdays, Active: true,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
		{
			ID: uuid.New().String(), AccountID: accountID,
			Name: "Dr. Tunde Okafor", Specialization: "Dermatology",
			Email: "tunde.okafor@clinic.local", Phone: "+2348022222222",
			WorkingHours: weekdays, Active: true,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		},
	}

	for _, d := range doctors {
		if err := doctorRepo.Create(ctx, d); err != nil {
			log.Printf("Failed to create doctor %s: %v", d.Name, err)
		}
	}

	contacts := []*entities.Contact{
		{ID: uuid.New().String(), AccountID: accountID, Name: "Chiamaka Obi", Email: "chiamaka@example.com", PhoneNumber: "+2348033333333"},
		{ID: uuid.New().String(), AccountID: accountID, Name: "Bola Adeyemi", Email: "bola@example.com", PhoneNumber: "+2348044444444"},
	}

	for _, c := range contacts {
		_, err := pgClient.DB().ExecContext(ctx, `
			INSERT INTO contacts (id, account_id, name, email, phone_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		`, c.ID, c.AccountID, c.Name, c.Email, c.PhoneNumber)
		if err != nil {
			log.Printf("Failed to create contact %s: %v", c.Name, err)
		}
	}

	// book through the service so availability and conflict gates are exercised
	slot := nextWeekdaySlot(time.Now().In(loc), 10)
	bookings := []services.CreateAppointmentInput{
		{AccountID: accountID, DoctorID: doctors[0].ID, ContactID: contacts[0].ID, ScheduledAt: slot, Notes: "Routine checkup"},
		{AccountID: accountID, DoctorID: doctors[0].ID, ContactID: contacts[1].ID, ScheduledAt: slot.Add(time.Hour), Status: entities.AppointmentStatusConfirmed},
		{AccountID: accountID, DoctorID: doctors[1].ID, ContactID: contacts[1].ID, ScheduledAt: slot.Add(2 * time.Hour), DurationMinutes: 45},
	}

	for _, input := range bookings {
		appt, err := appointmentService.Create(ctx, input)
		if err != nil {
			log.Printf("Failed to book appointment: %v", err)
			continue
		}
		log.Printf("Booked appointment %s at %s (%s)", appt.ID, appt.ScheduledAt.Format(time.RFC3339), appt.Status)
	}

	log.Println("Seeding complete")
}

// nextWeekdaySlot finds the next Monday-Friday day at the given hour,
// starting tomorrow so seeded bookings are always in the future.
func nextWeekdaySlot(from time.Time, hour int) time.Time {
	day := from.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}
