package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Auth     bool   `json:"auth"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type probe struct {
	Target   target
	Status   int
	Duration time.Duration
	Error    error
}

var defaultTargets = []target{
	{Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/metrics", Expect: http.StatusOK},
	{Method: http.MethodGet, Path: "/api/v1/attendance/matrix?courseId=1", Auth: true, Expect: http.StatusOK, Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/attendance/sessions", Auth: true, Expect: http.StatusOK},
	{Method: http.MethodGet, Path: "/api/v1/attendance/export?courseId=1", Auth: true, Expect: http.StatusOK},
}

func main() {
	var (
		base        string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "gateway base URL")
	flag.StringVar(&token, "token", os.Getenv("SMOKE_TOKEN"), "bearer token for authenticated targets")
	flag.StringVar(&targetsPath, "targets", "", "optional JSON targets file overriding the defaults")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets := defaultTargets
	if targetsPath != "" {
		loaded, err := loadTargets(targetsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load targets: %v\n", err)
			os.Exit(2)
		}
		targets = loaded
	}

	client := &http.Client{Timeout: timeout}

	var failures int
	results := make([]probe, 0, len(targets))
	for _, tgt := range targets {
		res := probeTarget(client, base, token, tgt)
		if res.Error != nil || res.Status != expected(tgt) {
			if tgt.Critical {
				failures++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Critical failures: %d\n", failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func expected(tgt target) int {
	if tgt.Expect == 0 {
		return http.StatusOK
	}
	return tgt.Expect
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Targets []target `json:"targets"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func probeTarget(client *http.Client, base, token string, tgt target) probe {
	res := probe{Target: tgt}

	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := strings.TrimRight(base, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		res.Error = err
		return res
	}
	if tgt.Auth && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	res.Status = resp.StatusCode
	return res
}

func printReport(results []probe) {
	fmt.Println("Smoke Probe Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Status != expected(res.Target) {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status: %d (want %d) in %s | Critical: %t\n", res.Status, expected(res.Target), res.Duration, res.Target.Critical)
	}
}
