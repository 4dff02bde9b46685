package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"templeq/internal/bookings"
	"templeq/internal/shared/constants"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StepResult is one request of the smoke run
type StepResult struct {
	Step         string        `json:"step"`
	Method       string        `json:"method"`
	Endpoint     string        `json:"endpoint"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
}

// SmokeSuite walks one device through the queue against a running server
type SmokeSuite struct {
	BaseURL  string
	DeviceID string
	Client   *http.Client
	Results  []StepResult
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080/api/v1", "API base URL")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address; empty skips key checks")
	templeID := flag.String("temple", "somnath", "temple to book")
	slotTime := flag.String("slot", "19:00", "slot to book")
	tierID := flag.String("tier", "premium", "tier to book")
	report := flag.String("report", "", "write a JSON report to this file")
	flag.Parse()

	suite := &SmokeSuite{
		BaseURL:  *baseURL,
		DeviceID: uuid.NewString(),
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
	queue := "/temples/" + *templeID + "/queue"

	fmt.Printf("Starting queue smoke run as device %s\n", suite.DeviceID)

	steps := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"List temples", http.MethodGet, "/temples", nil},
		{"List slots", http.MethodGet, "/temples/" + *templeID + "/slots", nil},
		{"List slots (cached)", http.MethodGet, "/temples/" + *templeID + "/slots", nil},
		{"Queue state", http.MethodGet, queue, nil},
		{"Select slot", http.MethodPost, queue + "/slot", map[string]string{"slotTime": *slotTime}},
		{"Select tier", http.MethodPost, queue + "/tier", map[string]string{"tierId": *tierID}},
		{"Pay", http.MethodPost, queue + "/pay", map[string]interface{}{"name": "Smoke Test", "phoneNumber": "9000000000", "partySize": 1}},
		{"Refresh position", http.MethodPost, queue + "/refresh", nil},
		{"Fetch pass", http.MethodGet, queue + "/pass", nil},
	}

	failed := false
	for _, s := range steps {
		result := suite.run(s.name, s.method, s.path, s.body)
		suite.Results = append(suite.Results, result)
		if !result.Success {
			failed = true
			// A declined simulated payment can be retried once
			if s.name == "Pay" && result.StatusCode == http.StatusPaymentRequired {
				retry := suite.run("Retry payment", http.MethodPost, queue+"/pay/retry", nil)
				suite.Results = append(suite.Results, retry)
				failed = !retry.Success
			}
			if failed {
				break
			}
		}
	}

	if !failed && *redisAddr != "" {
		if err := checkRedis(*redisAddr, suite.DeviceID, *templeID); err != nil {
			fmt.Printf("Redis check failed: %v\n", err)
			failed = true
		} else {
			fmt.Println("Redis booking and cache keys present")
		}
	}

	if !failed {
		leave := suite.run("Leave queue", http.MethodPost, queue+"/leave", map[string]string{"reason": "change_plans"})
		suite.Results = append(suite.Results, leave)
		failed = !leave.Success
	}

	suite.printSummary()
	if *report != "" {
		if err := suite.writeReport(*report); err != nil {
			log.Printf("Failed to write report: %v", err)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func (s *SmokeSuite) run(step, method, endpoint string, body interface{}) StepResult {
	result := StepResult{Step: step, Method: method, Endpoint: endpoint}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.BaseURL+endpoint, reader)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", s.DeviceID)

	start := time.Now()
	resp, err := s.Client.Do(req)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		s.print(result)
		return result
	}
	defer resp.Body.Close()

	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Success {
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, envelope.Message)
	}
	s.print(result)
	return result
}

func (s *SmokeSuite) print(r StepResult) {
	status := "ok"
	if !r.Success {
		status = "FAIL " + r.Error
	}
	fmt.Printf("  %-20s %-4s %-40s %8v  %s\n", r.Step, r.Method, r.Endpoint, r.ResponseTime.Round(time.Millisecond), status)
}

func checkRedis(addr, deviceID, templeID string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bookingKey := constants.BuildBookingKey(bookings.LedgerKey(deviceID, templeID))
	n, err := client.Exists(ctx, bookingKey).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("booking key %s not found", bookingKey)
	}

	// Slots are only cached when Postgres backs the temple data
	slotsKey := constants.BuildTempleSlotsKey(templeID)
	if n, err := client.Exists(ctx, slotsKey).Result(); err == nil && n == 0 {
		fmt.Printf("Note: %s not cached (in-memory catalog?)\n", slotsKey)
	}
	return nil
}

func (s *SmokeSuite) printSummary() {
	passed := 0
	var total time.Duration
	for _, r := range s.Results {
		if r.Success {
			passed++
		}
		total += r.ResponseTime
	}
	fmt.Printf("\n%d/%d steps passed", passed, len(s.Results))
	if len(s.Results) > 0 {
		fmt.Printf(", average response %v", (total / time.Duration(len(s.Results))).Round(time.Millisecond))
	}
	fmt.Println()
}

func (s *SmokeSuite) writeReport(path string) error {
	data, err := json.MarshalIndent(map[string]interface{}{
		"device_id": s.DeviceID,
		"results":   s.Results,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
