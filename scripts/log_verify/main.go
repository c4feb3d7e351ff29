package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cai360/TVBsAdScheduler/internal/models"
	"github.com/cai360/TVBsAdScheduler/internal/service"
	"github.com/cai360/TVBsAdScheduler/pkg/export"
)

type target struct {
	ChannelID string `json:"channelId"`
	Date      string `json:"date"`
	Critical  bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type verification struct {
	Target        target
	ConvertStatus int
	ReplayStatus  int
	Checksum      string
	Stable        bool
	ChecksumMatch bool
	Error         error
	Duration      time.Duration
}

type convertEnvelope struct {
	Data struct {
		Checksum         string          `json:"checksum"`
		AlreadyConverted bool            `json:"alreadyConverted"`
		Log              json.RawMessage `json:"log"`
	} `json:"data"`
}

func main() {
	var (
		base        string
		targetsPath string
		secret      string
		issuer      string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "log_verify", "targets.json"), "Path to JSON targets file")
	flag.StringVar(&secret, "jwt-secret", os.Getenv("JWT_SECRET"), "HS256 secret shared with the API")
	flag.StringVar(&issuer, "jwt-issuer", "ad-scheduler", "Token issuer expected by the API")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: secret, Issuer: issuer, Expiry: 15 * time.Minute})
	token, _, err := tokens.Issue("log-verify", models.RoleScheduler, "", "log verify")
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []verification
		breaking int
		optional int
	)
	for _, t := range targets {
		res := verify(client, base, token, t)
		if res.Error != nil || !res.Stable || !res.ChecksumMatch {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

// verify converts the day twice and fetches the stored export twice. All four
// bodies must be byte-identical and match the advertised checksum.
func verify(client *http.Client, base, token string, tgt target) verification {
	res := verification{Target: tgt}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	dayPath := fmt.Sprintf("/logs/%s/%s", tgt.ChannelID, tgt.Date)

	first, status, err := convert(client, base+dayPath+"/convert", token)
	if err != nil {
		res.Error = fmt.Errorf("first convert: %w", err)
		return res
	}
	res.ConvertStatus = status
	second, status, err := convert(client, base+dayPath+"/convert", token)
	if err != nil {
		res.Error = fmt.Errorf("replayed convert: %w", err)
		return res
	}
	res.ReplayStatus = status
	if !second.Data.AlreadyConverted {
		res.Error = errors.New("replayed convert did not report alreadyConverted")
		return res
	}

	exportA, headerA, err := fetch(client, base+dayPath, token)
	if err != nil {
		res.Error = fmt.Errorf("fetch export: %w", err)
		return res
	}
	exportB, _, err := fetch(client, base+dayPath, token)
	if err != nil {
		res.Error = fmt.Errorf("refetch export: %w", err)
		return res
	}

	res.Checksum = first.Data.Checksum
	res.Stable = bytes.Equal(first.Data.Log, second.Data.Log) &&
		bytes.Equal(exportA, exportB) &&
		bytes.Equal(exportA, []byte(first.Data.Log))
	res.ChecksumMatch = headerA == first.Data.Checksum &&
		second.Data.Checksum == first.Data.Checksum &&
		export.Checksum(exportA) == first.Data.Checksum
	return res
}

func convert(client *http.Client, url, token string) (*convertEnvelope, int, error) {
	body, status, _, err := do(client, http.MethodPost, url, token)
	if err != nil {
		return nil, status, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, status, fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
	}
	var env convertEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, status, err
	}
	return &env, status, nil
}

func fetch(client *http.Client, url, token string) ([]byte, string, error) {
	body, status, header, err := do(client, http.MethodGet, url, token)
	if err != nil {
		return nil, "", err
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", status)
	}
	return body, header.Get("X-Log-Checksum"), nil
}

func do(client *http.Client, method, url, token string) ([]byte, int, http.Header, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, nil, err
	}
	return body, resp.StatusCode, resp.Header, nil
}

func printReport(results []verification) {
	fmt.Println("LOG Verification Report")
	fmt.Println("=======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.Stable || !res.ChecksumMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s (%s)\n", status, res.Target.ChannelID, res.Target.Date, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Convert: %d | Replay: %d | Checksum: %s\n", res.ConvertStatus, res.ReplayStatus, res.Checksum)
		fmt.Printf("  Byte stable: %t | Checksum match: %t | Critical: %t\n", res.Stable, res.ChecksumMatch, res.Target.Critical)
	}
}
