// Package main seeds a SeeIt database with the demo officer accounts and a
// handful of sample reports around Tamale. Officer creation is idempotent;
// sample reports are only added to an empty reports table.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/seeit/report-server/internal/anonymizer"
	"github.com/seeit/report-server/internal/auth"
	"github.com/seeit/report-server/internal/config"
	"github.com/seeit/report-server/internal/database"
	"github.com/seeit/report-server/internal/events"
	"github.com/seeit/report-server/internal/models"
	"github.com/seeit/report-server/internal/services"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type officerSeed struct {
	badge, name, station string
}

var officers = []officerSeed{
	{"TPD-001", "Officer John Smith", "Tamale Central Station"},
	{"TPD-002", "Sergeant Mary Johnson", "Tamale North Station"},
	{"TPD-003", "Inspector David Wilson", "Tamale Central Station"},
}

type reportSeed struct {
	category    string
	severity    models.Severity
	lat, lng    float64
	location    string
	description string
	status      models.Status
	officer     int
}

var reports = []reportSeed{
	{"Rubbish", models.SeverityMedium, 9.4034, -0.8424, "Central Market, Tamale",
		"Garbage piling up near the main entrance of Central Market", models.StatusSubmitted, -1},
	{"Unsafe Area", models.SeverityHigh, 9.4167, -0.8667, "Aboabo Junction",
		"Broken streetlight creating dangerous conditions at night", models.StatusInProgress, 0},
	{"Vandalism", models.SeverityLow, 9.3876, -0.8513, "University for Development Studies",
		"Graffiti on university building walls", models.StatusResolved, 1},
	{"Suspicious Activity", models.SeverityCritical, 9.4089, -0.8456, "Tamale Teaching Hospital Area",
		"Unusual activity reported near hospital premises", models.StatusReviewing, 2},
	{"Rubbish", models.SeverityHigh, 9.3945, -0.8234, "Kalpohin Market",
		"Overflowing waste bins causing health hazard", models.StatusSubmitted, -1},
}

func main() {
	var (
		password    string
		skipReports bool
	)
	flags := pflag.NewFlagSet("seed", pflag.ExitOnError)
	flags.StringVar(&password, "password", "demo123", "password for the demo officer accounts")
	flags.BoolVar(&skipReports, "skip-reports", false, "only create officer accounts")
	flags.Parse(os.Args[1:])

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(context.Background(), password, !skipReports, sugar); err != nil {
		sugar.Fatalf("Seeding failed: %v", err)
	}
}

func run(ctx context.Context, password string, withReports bool, sugar *zap.SugaredLogger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	policeSvc := services.NewPoliceService(db, auth.NewGate(cfg.JWTSecret, cfg.TokenTTL), sugar)
	for _, o := range officers {
		created, err := policeSvc.CreateOfficer(ctx, uuid.NewString(), o.badge, o.name, o.station, password)
		if err != nil {
			return fmt.Errorf("create officer %s: %w", o.badge, err)
		}
		sugar.Infow("Officer account", "badge", o.badge, "created", created)
	}

	if !withReports {
		return nil
	}

	store := services.NewReportStore(db, anonymizer.New(), sugar)
	reportSvc := services.NewReportService(store, events.NewBus(sugar), services.NewActivityLogService(db, sugar), sugar)

	existing, err := reportSvc.List(ctx, models.ListQuery{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing.Reports) > 0 {
		sugar.Info("Reports table is not empty, skipping sample reports")
		return nil
	}

	for _, seed := range reports {
		lat, lng := seed.lat, seed.lng
		report, err := reportSvc.Submit(ctx, &models.SubmissionRequest{
			Category:    seed.category,
			Latitude:    &lat,
			Longitude:   &lng,
			Location:    seed.location,
			Description: seed.description,
			Severity:    seed.severity,
		}, nil)
		if err != nil {
			return fmt.Errorf("submit sample report %q: %w", seed.location, err)
		}

		if seed.officer >= 0 {
			o := officers[seed.officer]
			identity := &models.OfficerIdentity{BadgeID: o.badge, Name: o.name, Station: o.station}
			if _, err := reportSvc.Transition(ctx, report.ID, seed.status, identity, nil); err != nil {
				return fmt.Errorf("transition sample report %q: %w", seed.location, err)
			}
		}
		sugar.Infow("Sample report", "anonymousId", report.AnonymousID, "status", seed.status)
	}

	sugar.Infof("Seeded %d sample reports. Officers log in with badge TPD-001..TPD-003.", len(reports))
	return nil
}
