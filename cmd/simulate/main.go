package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/dean-appointment-requests/internal/api"
	"github.com/hackgods/dean-appointment-requests/internal/appointment"
)

// simulate floods one preferred date with concurrent approvals and then
// checks that no slot on that date ended up approved twice.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Requests   int
	Date       string
	ReadRatio  float64
}

type DataPool struct {
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Create   OperationMetrics
	Approve  OperationMetrics
	Schedule OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: date=%s duration=%s workers=%d requests=%d read=%.2f",
		cfg.Date, cfg.Duration, cfg.Workers, cfg.Requests, cfg.ReadRatio)

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	sim.createRequests(ctx)
	cancel()

	sim.Run()

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelVerify()
	verifyErr := sim.Verify(verifyCtx)

	sim.PrintReport()

	if verifyErr != nil {
		log.Fatalf("invariant check failed: %v", verifyErr)
	}
	log.Println("invariant check passed: every slot on the date has at most one approval")
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:   getDuration("SIM_DURATION", 10*time.Second),
		Workers:    getInt("SIM_WORKERS", 16),
		Requests:   getInt("SIM_REQUESTS", 64),
		Date:       getEnv("SIM_DATE", time.Now().AddDate(0, 0, 30).Format(appointment.DateLayout)),
		ReadRatio:  getFloat("SIM_READ_RATIO", 0.2),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Requests <= 0 {
		return fmt.Errorf("SIM_REQUESTS must be > 0")
	}
	if _, err := time.Parse(appointment.DateLayout, cfg.Date); err != nil {
		return fmt.Errorf("SIM_DATE must be YYYY-MM-DD: %w", err)
	}
	return nil
}

func (s *Simulator) createRequests(ctx context.Context) {
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	for i := 0; i < s.config.Requests; i++ {
		body, _ := json.Marshal(api.CreateAppointmentRequest{
			Name:          faker.Name(),
			Role:          string(appointment.RoleStudent),
			Email:         faker.Email(),
			Phone:         faker.Numerify("##########"),
			MeetingReason: "load test meeting request",
			PreferredDate: s.config.Date,
		})

		start := time.Now()
		var apptResp api.AppointmentResponse
		status, err := s.do(ctx, http.MethodPost, "/api/appointments", body, &apptResp)
		latency := time.Since(start)

		success := err == nil && status == http.StatusCreated
		if success {
			s.pool.AddAppointment(apptResp.ID)
		}
		s.metrics.Create.Record(latency, success, false)
	}

	log.Printf("created %d pending requests for %s", atomic.LoadInt64(&s.metrics.Create.Success), s.config.Date)
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.ReadRatio {
				s.doSchedule(ctx)
			} else {
				s.doApprove(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doApprove(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	slot := string(appointment.TimeSlots[rng.Intn(len(appointment.TimeSlots))])

	body, _ := json.Marshal(api.UpdateAppointmentRequest{
		Status:   string(appointment.StatusApproved),
		TimeSlot: &slot,
	})

	start := time.Now()
	var errResp api.ErrorResponse
	status, err := s.do(ctx, http.MethodPatch, "/api/appointments/"+apptID.String(), body, &errResp)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := err == nil && status == http.StatusOK
	conflict := err == nil && status == http.StatusBadRequest && errResp.Error == "slot_already_booked"
	s.metrics.Approve.Record(latency, success, conflict)
}

func (s *Simulator) doSchedule(ctx context.Context) {
	start := time.Now()
	status, err := s.do(ctx, http.MethodGet, "/api/schedule?date="+s.config.Date, nil, nil)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	s.metrics.Schedule.Record(latency, err == nil && status == http.StatusOK, false)
}

// Verify reads the final state back and fails if any slot on the simulated
// date is held by more than one Approved appointment.
func (s *Simulator) Verify(ctx context.Context) error {
	var appts []api.AppointmentResponse
	status, err := s.do(ctx, http.MethodGet, "/api/appointments?status=Approved", nil, &appts)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list approved: unexpected status %d", status)
	}

	holders := make(map[string]int)
	for _, a := range appts {
		if a.PreferredDate != s.config.Date {
			continue
		}
		if a.TimeSlot == nil {
			return fmt.Errorf("appointment %s is Approved without a slot", a.ID)
		}
		holders[*a.TimeSlot]++
	}

	var dupes []string
	for slot, n := range holders {
		if n > 1 {
			dupes = append(dupes, fmt.Sprintf("%s x%d", slot, n))
		}
	}
	if len(dupes) > 0 {
		sort.Strings(dupes)
		return fmt.Errorf("double-booked slots on %s: %s", s.config.Date, strings.Join(dupes, ", "))
	}

	log.Printf("verified %d booked slots on %s", len(holders), s.config.Date)
	return nil
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Date: %s\n", s.config.Date)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Approve", &s.metrics.Approve)
	printOperationReport("Schedule", &s.metrics.Schedule)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
