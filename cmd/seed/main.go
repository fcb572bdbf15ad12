package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/dean-appointment-requests/internal/appointment"
)

// seed submits fake meeting requests through the public API, so it works the
// same against the memory store and Postgres.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	baseURL := getEnv("SEED_API_BASE_URL", "http://localhost:8080")
	count := getInt("SEED_COUNT", 200)
	days := getInt("SEED_DAYS", 14)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	client := &http.Client{Timeout: 10 * time.Second}

	created := 0
	for i := 0; i < count; i++ {
		req := fakeRequest(faker, days)
		if err := submit(ctx, client, baseURL, req); err != nil {
			log.Printf("submit %d failed: %v", i, err)
			continue
		}
		created++
		if created%50 == 0 {
			log.Printf("requests seeded: %d/%d", created, count)
		}
	}

	log.Printf("seed complete: %d/%d requests created", created, count)
}

func fakeRequest(faker *gofakeit.Faker, days int) map[string]string {
	roles := appointment.Roles
	date := time.Now().AddDate(0, 0, faker.Number(0, days)).Format(appointment.DateLayout)

	return map[string]string{
		"name":          faker.Name(),
		"role":          string(roles[faker.Number(0, len(roles)-1)]),
		"email":         faker.Email(),
		"phone":         faker.Numerify("##########"),
		"meetingReason": fmt.Sprintf("Would like to discuss the %s %s with the dean", faker.Word(), faker.Noun()),
		"preferredDate": date,
	}
}

func submit(ctx context.Context, client *http.Client, baseURL string, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
