package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voicedesk/scheduling-backend/internal/db"
	"github.com/voicedesk/scheduling-backend/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := ensureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAppointments(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS appointments (
			id                TEXT PRIMARY KEY,
			contact_number    TEXT NOT NULL,
			name              TEXT NOT NULL,
			date              TEXT NOT NULL,
			time              TEXT NOT NULL,
			status            TEXT NOT NULL,
			confirmed_by_user BOOLEAN NOT NULL DEFAULT false,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_appointments_contact ON appointments (contact_number);

		CREATE TABLE IF NOT EXISTS summaries (
			session_id          TEXT PRIMARY KEY,
			contact_number      TEXT,
			summary             TEXT NOT NULL,
			booked_appointments JSONB NOT NULL DEFAULT '[]',
			preferences         TEXT[] NOT NULL DEFAULT '{}',
			created_at          TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d appointments", count)

	repo := schedule.NewPgRepository(pool)

	times := []string{"08:00", "09:00", "10:15", "11:30", "14:00", "15:30", "16:45"}

	for i := 0; i < count; i++ {
		date := gofakeit.DateRange(
			time.Now().AddDate(0, 0, 1),
			time.Now().AddDate(0, 3, 0),
		).Format("2006-01-02")

		appt := schedule.Appointment{
			ID:              uuid.NewString(),
			ContactNumber:   fmt.Sprintf("+1%d", gofakeit.Number(2000000000, 9999999999)),
			Name:            gofakeit.Name(),
			Date:            date,
			Time:            times[gofakeit.Number(0, len(times)-1)],
			Status:          schedule.StatusBooked,
			ConfirmedByUser: true,
		}

		if _, err := repo.Create(ctx, appt); err != nil {
			return fmt.Errorf("create appointment %d: %w", i, err)
		}
	}

	return nil
}
