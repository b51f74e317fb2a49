package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/clinic-appointments/internal/appointment"
	"github.com/hackgods/clinic-appointments/internal/config"
)

var visitReasons = []string{"Checkup", "Follow-up", "Lab review", "Renewal"}

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Days        int
	CreateRatio float64
	UpdateRatio float64
	DeleteRatio float64
	Email       string
	Password    string
}

type idList struct {
	mu  sync.RWMutex
	ids []string
}

func (l *idList) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

func (l *idList) random(rng *rand.Rand) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.ids) == 0 {
		return "", false
	}
	return l.ids[rng.Intn(len(l.ids))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, ok int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == ok:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}
	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

// percentiles returns avg, p50, p95 and max.
func (om *OperationMetrics) percentiles() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return 0, 0, 0, 0
	}
	ls := append([]time.Duration(nil), om.latencies...)
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })

	var sum time.Duration
	for _, l := range ls {
		sum += l
	}
	at := func(p int) time.Duration {
		i := len(ls) * p / 100
		if i >= len(ls) {
			i = len(ls) - 1
		}
		return ls[i]
	}
	return sum / time.Duration(len(ls)), at(50), at(95), ls[len(ls)-1]
}

type Metrics struct {
	Create    OperationMetrics
	Update    OperationMetrics
	Delete    OperationMetrics
	ListByDay OperationMetrics
	Month     OperationMetrics
}

type Simulator struct {
	config   SimConfig
	client   *http.Client
	log      *slog.Logger
	patients []appointment.Patient
	doctors  []appointment.Doctor
	slots    []string
	booked   idList
	metrics  Metrics
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("service", "simulate"))

	cfg, err := loadConfig()
	if err != nil {
		log.Error("invalid config", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("simulator starting",
		slog.Duration("duration", cfg.Duration),
		slog.Int("workers", cfg.Workers),
		slog.String("api", cfg.APIBaseURL),
	)

	sim := &Simulator{config: cfg, client: &http.Client{Timeout: 10 * time.Second}, log: log}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sim.loadReference(ctx)
	cancel()
	if err != nil {
		log.Error("load reference data", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("reference data loaded", slog.Int("patients", len(sim.patients)), slog.Int("doctors", len(sim.doctors)))

	sim.Run()
	sim.PrintReport(os.Stdout)
}

func loadConfig() (SimConfig, error) {
	base, err := config.Load()
	if err != nil {
		return SimConfig{}, err
	}
	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort), "/"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		Days:        getInt("SIM_DAYS", 5),
		CreateRatio: getFloat("SIM_CREATE_RATIO", 0.5),
		UpdateRatio: getFloat("SIM_UPDATE_RATIO", 0.15),
		DeleteRatio: getFloat("SIM_DELETE_RATIO", 0.05),
		Email:       base.StaffEmail,
		Password:    base.StaffPassword,
	}
	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DAYS must be > 0")
	}
	if cfg.CreateRatio+cfg.UpdateRatio+cfg.DeleteRatio > 1 {
		return SimConfig{}, fmt.Errorf("write ratios must add up to at most 1")
	}
	return cfg, nil
}

func (s *Simulator) loadReference(ctx context.Context) error {
	var patients struct {
		Items []appointment.Patient `json:"items"`
	}
	if _, err := s.call(ctx, http.MethodGet, "/patients", nil, &patients); err != nil {
		return err
	}
	var doctors struct {
		Items []appointment.Doctor `json:"items"`
	}
	if _, err := s.call(ctx, http.MethodGet, "/doctors", nil, &doctors); err != nil {
		return err
	}
	if len(patients.Items) == 0 || len(doctors.Items) == 0 {
		return fmt.Errorf("directory is empty")
	}
	s.patients, s.doctors = patients.Items, doctors.Items
	s.slots = appointment.TimeSlots()
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, rand.New(rand.NewSource(time.Now().UnixNano()+int64(workerID))))
		}(i)
	}
	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, rng *rand.Rand) {
	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.CreateRatio:
			s.doCreate(ctx, rng)
		case r < s.config.CreateRatio+s.config.UpdateRatio:
			s.doUpdate(ctx, rng)
		case r < s.config.CreateRatio+s.config.UpdateRatio+s.config.DeleteRatio:
			s.doDelete(ctx, rng)
		case rng.Intn(4) == 0:
			s.doMonth(ctx)
		default:
			s.doListByDay(ctx, rng)
		}
	}
}

func (s *Simulator) randomInput(rng *rand.Rand) map[string]any {
	body := map[string]any{
		"patientId": s.patients[rng.Intn(len(s.patients))].ID,
		"doctorId":  s.doctors[rng.Intn(len(s.doctors))].ID,
		"date":      s.randomDate(rng),
		"time":      s.slots[rng.Intn(len(s.slots))],
	}
	if rng.Intn(3) == 0 {
		body["notes"] = visitReasons[gofakeit.Number(0, len(visitReasons)-1)] + " (" + gofakeit.FirstName() + ")"
	}
	return body
}

func (s *Simulator) randomDate(rng *rand.Rand) string {
	return time.Now().AddDate(0, 0, rng.Intn(s.config.Days)).Format(appointment.DateLayout)
}

func (s *Simulator) doCreate(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	var created struct {
		ID string `json:"id"`
	}
	status, _ := s.call(ctx, http.MethodPost, "/appointments", s.randomInput(rng), &created)
	s.metrics.Create.Record(time.Since(start), status, http.StatusCreated)
	if status == http.StatusCreated && created.ID != "" {
		s.booked.add(created.ID)
	}
}

func (s *Simulator) doUpdate(ctx context.Context, rng *rand.Rand) {
	id, ok := s.booked.random(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, _ := s.call(ctx, http.MethodPut, "/appointments/"+id, s.randomInput(rng), nil)
	s.metrics.Update.Record(time.Since(start), status, http.StatusOK)
}

func (s *Simulator) doDelete(ctx context.Context, rng *rand.Rand) {
	id, ok := s.booked.random(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, _ := s.call(ctx, http.MethodDelete, "/appointments/"+id, nil, nil)
	s.metrics.Delete.Record(time.Since(start), status, http.StatusNoContent)
}

func (s *Simulator) doListByDay(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	status, _ := s.call(ctx, http.MethodGet, "/appointments?date="+s.randomDate(rng), nil, nil)
	s.metrics.ListByDay.Record(time.Since(start), status, http.StatusOK)
}

func (s *Simulator) doMonth(ctx context.Context) {
	now := time.Now()
	start := time.Now()
	status, _ := s.call(ctx, http.MethodGet, fmt.Sprintf("/calendar/%d/%d", now.Year(), int(now.Month())), nil, nil)
	s.metrics.Month.Record(time.Since(start), status, http.StatusOK)
}

// call returns the response status, or 0 when the request never completed.
func (s *Simulator) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.config.Email, s.config.Password)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintln(w, "SIMULATION REPORT")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Duration: %s  Workers: %d  Booked ids: %d\n\n", s.config.Duration, s.config.Workers, len(s.booked.ids))

	printOperation(w, "Create", &s.metrics.Create)
	printOperation(w, "Update", &s.metrics.Update)
	printOperation(w, "Delete", &s.metrics.Delete)
	printOperation(w, "List by day", &s.metrics.ListByDay)
	printOperation(w, "Month view", &s.metrics.Month)
}

func printOperation(w io.Writer, name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.percentiles()

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d  Success: %d (%.1f%%)\n", total, success, pct(success))
	if conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Fprintf(w, "  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

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
