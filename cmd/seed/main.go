package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/logger"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var locations = []string{"Visakhapatnam", "Vijayawada", "Guntur", "Tirupati", "Kakinada"}

// seed loads the built-in directory into Postgres and pads it with fake
// clinics and doctors so load tests have a realistic spread.
func main() {
	log := logger.New(os.Getenv("APP_ENV"), "info").With().Str("service", "seed").Logger()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	_ = gofakeit.Seed(time.Now().UnixNano())

	if err := seedDefaults(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("seed built-in directory")
	}

	clinics := envInt("SEED_CLINICS", 20)
	clinicIDs, err := seedClinics(ctx, pool, log, clinics)
	if err != nil {
		log.Fatal().Err(err).Msg("seed clinics")
	}
	if err := seedDoctors(ctx, pool, log, clinicIDs, envInt("SEED_DOCTORS", 100)); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}

	log.Info().Msg("seed complete")
}

// seedDefaults writes the static directory with its fixed ids so tokens and
// fixtures written against the in-memory directory keep working.
func seedDefaults(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	static := directory.NewDefaultDirectory()

	clinics, err := static.ListClinics(ctx, directory.Filter{})
	if err != nil {
		return err
	}
	doctors, err := static.ListDoctors(ctx, directory.Filter{})
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range clinics {
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, address, location, phone)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.Name, c.Address, c.Location, c.Phone)
		if err != nil {
			return fmt.Errorf("insert clinic %d: %w", c.ID, err)
		}
	}

	for _, d := range doctors {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, location, clinic_id, consultation_fee)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, d.ID, d.Name, d.Specialty, d.Location, d.ClinicID, d.Fee)
		if err != nil {
			return fmt.Errorf("insert doctor %d: %w", d.ID, err)
		}
	}

	// explicit ids do not advance the sequences
	for _, table := range []string{"clinics", "doctors"} {
		_, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('`+table+`', 'id'), (SELECT MAX(id) FROM `+table+`))`)
		if err != nil {
			return fmt.Errorf("advance %s sequence: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Int("clinics", len(clinics)).Int("doctors", len(doctors)).Msg("built-in directory seeded")
	return nil
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) ([]int64, error) {
	log.Info().Int("count", count).Msg("seeding clinics")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		loc := locations[gofakeit.Number(0, len(locations)-1)]

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO clinics (name, address, location, phone)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, gofakeit.Company()+" Clinic", gofakeit.Street()+", "+loc, loc, gofakeit.Phone()).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info().Msg("clinics seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, clinicIDs []int64, count int) error {
	if len(clinicIDs) == 0 {
		return nil
	}
	log.Info().Int("count", count).Msg("seeding doctors")

	const batchSize = 50

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			clinicID := clinicIDs[gofakeit.Number(0, len(clinicIDs)-1)]
			specialty := specialties[gofakeit.Number(0, len(specialties)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (name, specialty, location, clinic_id, consultation_fee)
				SELECT $1, $2, location, id, $3 FROM clinics WHERE id = $4
			`, "Dr. "+gofakeit.Name(), specialty, gofakeit.Number(3, 15)*100, clinicID)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Info().Int("done", end).Int("total", count).Msg("doctors seeded")
	}

	return nil
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
