package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/referral-scheduling/internal/db"
)

// Seeds reference data the way the live system receives it: facilities with
// coordinates, a procedure catalog, and offer slots over the next month.
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

	gofakeit.Seed(time.Now().UnixNano())

	facilityIDs, err := seedFacilities(context.Background(), pool, 10)
	if err != nil {
		log.Fatalf("seed facilities: %v", err)
	}
	procedureIDs, err := seedProcedures(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed procedures: %v", err)
	}
	if err := seedSlots(context.Background(), pool, facilityIDs, procedureIDs); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedFacilities(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d facilities", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		code := fmt.Sprintf("FAC_%d", i+1)
		name := gofakeit.Company() + " Health Center"
		lat := gofakeit.Float64Range(-33.0, 2.0)
		lon := gofakeit.Float64Range(-73.0, -34.0)

		_, err := tx.Exec(ctx, `
			INSERT INTO facilities (id, code, name, latitude, longitude, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
		`, id, code, name, lat, lon)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("facilities seeded")
	return ids, nil
}

func seedProcedures(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"CARDIOLOGY CONSULTATION",
		"CHEST X-RAY",
		"BLOOD PANEL",
		"MOTOR PHYSIOTHERAPY",
	}

	log.Printf("seeding %d procedures", len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for i, name := range names {
		id := uuid.New()
		code := fmt.Sprintf("PROC_%d", i+1)

		_, err := tx.Exec(ctx, `
			INSERT INTO procedures (id, code, name, created_at)
			VALUES ($1, $2, $3, now())
		`, id, code, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("procedures seeded")
	return ids, nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, facilityIDs, procedureIDs []uuid.UUID) error {
	const slotsPerFacility = 5

	log.Printf("seeding %d slots", len(facilityIDs)*slotsPerFacility)

	timesOfDay := []string{"morning", "afternoon"}
	today := time.Now().UTC()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, facilityID := range facilityIDs {
		for i := 0; i < slotsPerFacility; i++ {
			id := uuid.New()
			procedureID := procedureIDs[gofakeit.Number(0, len(procedureIDs)-1)]
			date := today.AddDate(0, 0, gofakeit.Number(1, 30))
			timeOfDay := timesOfDay[gofakeit.Number(0, len(timesOfDay)-1)]
			capacity := gofakeit.Number(1, 5)

			_, err := tx.Exec(ctx, `
				INSERT INTO slots (id, facility_id, procedure_id, date, time_of_day, remaining_capacity, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			`, id, facilityID, procedureID, date, timeOfDay, capacity)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("slots seeded")
	return nil
}
