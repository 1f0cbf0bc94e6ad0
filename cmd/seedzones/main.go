package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/config"
	"github.com/vikranta/safety/backend/internal/database"
	"github.com/vikranta/safety/backend/internal/logger"
	"github.com/vikranta/safety/backend/internal/services"
)

func main() {
	file := flag.String("file", "seeds/bangalore_zones.yaml", "YAML list of zones to insert")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	zones, err := loadZones(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	postgres, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := postgres.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	geofences := services.NewGeofenceService(postgres, services.NewScanChecker(postgres, log), log)
	created, skipped := seed(ctx, geofences, zones, log)
	log.WithFields(logrus.Fields{"created": created, "skipped": skipped, "file": *file}).Info("zone seeding finished")
}

func loadZones(path string) ([]services.CreateGeofenceInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var zones []services.CreateGeofenceInput
	if err := yaml.Unmarshal(data, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

type zoneCreator interface {
	Create(ctx context.Context, createdBy *uuid.UUID, in services.CreateGeofenceInput) (*services.GeofenceView, error)
}

// seed creates each zone. Names that already exist are skipped so the
// command can be re-run against a populated database.
func seed(ctx context.Context, geofences zoneCreator, zones []services.CreateGeofenceInput, log logrus.FieldLogger) (created, skipped int) {
	for _, z := range zones {
		_, err := geofences.Create(ctx, nil, z)
		switch {
		case err == nil:
			created++
			log.WithField("zone", z.Name).Info("zone added")
		case apperr.Is(err, apperr.KindConflict):
			skipped++
			log.WithField("zone", z.Name).Info("zone already exists")
		default:
			skipped++
			log.WithError(err).WithField("zone", z.Name).Warn("zone rejected")
		}
	}
	return created, skipped
}
