package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/roadwatch/roadwatch/internal/adapter/persistence"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/usecase"
)

type step struct {
	status  string
	daysAgo float64
}

type demoSignalement struct {
	req   usecase.CreateSignalementRequest
	steps []step
}

func demoData(now time.Time) []demoSignalement {
	day := func(n float64) time.Time { return now.Add(-time.Duration(n * float64(24*time.Hour))) }
	return []demoSignalement{
		{
			req: usecase.CreateSignalementRequest{
				Type: "Nid de poule", Description: "Série de nids de poule sur la voie montante",
				Localisation: "RN7, Ampitatafika", Latitude: -18.9343, Longitude: 47.4836,
				Date: day(21), Surface: 35, Budget: 4500000, Entreprise: "RoadFix Mada",
			},
			steps: []step{{"en_attente", 21}, {"en_cours", 18}, {"resolu", 9}},
		},
		{
			req: usecase.CreateSignalementRequest{
				Type: "Affaissement", Description: "Chaussée affaissée après les pluies",
				Localisation: "Route digue, Ankorondrano", Latitude: -18.8725, Longitude: 47.5210,
				Date: day(14), Surface: 120, Budget: 18000000, Entreprise: "Colas Madagascar",
			},
			steps: []step{{"en_attente", 14}, {"en_cours", 6.5}},
		},
		{
			req: usecase.CreateSignalementRequest{
				Type: "Fissure", Description: "Fissures longitudinales",
				Localisation: "Boulevard de l'Europe", Latitude: -18.9060, Longitude: 47.5300,
				Date: day(5), Surface: 12.5, Budget: 750000, Entreprise: "RoadFix Mada",
			},
			steps: []step{{"en_attente", 5}},
		},
		{
			req: usecase.CreateSignalementRequest{
				Type: "Nid de poule", Description: "Doublon d'un signalement déjà traité",
				Localisation: "Avenue de l'Indépendance", Latitude: -18.9100, Longitude: 47.5255,
				Date: day(10), Surface: 2, Budget: 0, Entreprise: "",
			},
			steps: []step{{"en_attente", 10}, {"rejete", 9}},
		},
		{
			req: usecase.CreateSignalementRequest{
				Type: "Bourrelet", Description: "Bourrelets d'enrobé au carrefour",
				Localisation: "Carrefour Analakely", Latitude: -18.9050, Longitude: 47.5240,
				Date: day(30), Surface: 48, Budget: 6800000, Entreprise: "Colas Madagascar",
			},
			steps: []step{{"en_attente", 30}, {"en_cours", 29}, {"resolu", 12.25}},
		},
	}
}

func main() {
	dryRun := flag.Bool("dry-run", false, "print the demo data without writing it")
	flag.Parse()

	now := time.Now().UTC()
	data := demoData(now)

	if *dryRun {
		for _, d := range data {
			fmt.Printf("%-14s %-32s %v\n", d.req.Type, d.req.Localisation, d.steps)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = cfg.GetDatabaseURL()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping db: %v", err)
	}

	appLogger := logger.New(logger.Config{Level: cfg.Logging.Level, Format: "text", ServiceName: "roadwatch-seed", Output: os.Stdout})

	// the creation instant drives the opening PENDING event
	createdAt := now
	signalements := usecase.NewSignalementUseCase(
		persistence.NewPostgresSignalementRepository(db),
		persistence.NewPostgresStatusEventRepository(db),
		nil,
		appLogger,
		func() time.Time { return createdAt },
	)

	for _, d := range data {
		createdAt = now.Add(-time.Duration(d.steps[0].daysAgo * float64(24*time.Hour)))
		detail, err := signalements.CreateSignalement(ctx, d.req)
		if err != nil {
			log.Fatalf("failed to seed signalement %q: %v", d.req.Localisation, err)
		}

		createdAt = now
		id := detail.ID
		for _, s := range d.steps[1:] {
			at := now.Add(-time.Duration(s.daysAgo * float64(24*time.Hour)))
			detail, err = signalements.ChangeStatus(ctx, id, usecase.ChangeStatusRequest{Status: s.status, At: &at})
			if err != nil {
				log.Fatalf("failed to record status %s for %s: %v", s.status, id, err)
			}
		}

		fmt.Printf("Seeded signalement: id=%s type=%s status=%s total=%s\n",
			detail.ID, detail.Type, detail.StatusLabel, detail.Display.Total)
	}

	fmt.Printf("Seeded %d signalements\n", len(data))
}
