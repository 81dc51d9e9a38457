package main

import (
	"context"
	"log"
	"os"
	"time"

	"curehub-backend/internal/auth"
	"curehub-backend/internal/config"
	"curehub-backend/internal/db"
	"curehub-backend/internal/principal"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedDoctor struct {
	Name           string
	Email          string
	Specialization string
	Degree         string
	Experience     int
	Availability   []principal.AvailabilityEntry
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols, cfg.StrictSlotClaim); err != nil {
		log.Fatal(err)
	}

	adminEmail := envOrDefault("ADMIN_EMAIL", "admin@curehub.local")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Println("seed admin: ADMIN_PASSWORD missing, skipping")
	} else {
		if err := seedAdmin(ctx, cols, envOrDefault("ADMIN_NAME", "Administrator"), adminEmail, adminPassword, cfg.Timezone); err != nil {
			log.Fatalf("seed admin error: %v", err)
		}
	}

	if os.Getenv("SEED_DEMO_DOCTORS") == "true" {
		doctors := []seedDoctor{
			{
				Name: "Asha Verma", Email: "asha.verma@curehub.local",
				Specialization: "Cardiology", Degree: "MD", Experience: 12,
				Availability: []principal.AvailabilityEntry{
					{Date: "2026-09-01", TimeSlots: []string{"09:00", "09:30", "10:00"}},
					{Date: "2026-09-02", TimeSlots: []string{"14:00", "14:30"}},
				},
			},
			{
				Name: "Rohit Menon", Email: "rohit.menon@curehub.local",
				Specialization: "Dermatology", Degree: "MBBS", Experience: 7,
				Availability: []principal.AvailabilityEntry{
					{Date: "2026-09-01", TimeSlots: []string{"11:00", "11:30"}},
				},
			},
		}
		password := envOrDefault("SEED_DOCTOR_PASSWORD", "changeme1")
		for _, d := range doctors {
			if err := seedOneDoctor(ctx, cols, d, password, cfg.Timezone); err != nil {
				log.Fatalf("seed doctor error for %s: %v", d.Email, err)
			}
		}
	}

	log.Println("seed completed")
}

func seedAdmin(ctx context.Context, cols *db.Collections, name, email, password string, loc *time.Location) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	filter := bson.M{"role": principal.RoleAdmin, "email": email}
	update := bson.M{
		"$set": bson.M{
			"name":         name,
			"passwordHash": hash,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       uuid.NewString(),
			"role":      principal.RoleAdmin,
			"email":     email,
			"createdAt": now,
		},
	}
	_, err = cols.Principals.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func seedOneDoctor(ctx context.Context, cols *db.Collections, d seedDoctor, password string, loc *time.Location) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	doctor := principal.Principal{
		ID:             uuid.NewString(),
		Role:           principal.RoleDoctor,
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   hash,
		Specialization: d.Specialization,
		Degree:         d.Degree,
		Experience:     d.Experience,
		Availability:   d.Availability,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := cols.Principals.InsertOne(ctx, doctor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Printf("seed doctor: %s already exists, skipping", d.Email)
			return nil
		}
		return err
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
