package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"iot-collector/internal/auth"
	"iot-collector/internal/gatewaylog"
	"iot-collector/internal/wire"
)

type config struct {
	logPath string
	url     string
	secret  string
	dryRun  bool
	pause   time.Duration
}

func main() {
	cfg := parseConfig()
	if cfg.logPath == "" {
		log.Fatal("-log is required")
	}
	if !cfg.dryRun && cfg.url == "" {
		log.Fatal("-url is required unless -dry-run is set")
	}

	file, err := os.Open(cfg.logPath)
	if err != nil {
		log.Fatalf("open log: %v", err)
	}
	defer file.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	sent := 0
	failed := 0

	stats, err := gatewaylog.ParseReader(file, func(msg *wire.IotMessage) error {
		if cfg.dryRun {
			sent++
			return nil
		}
		if err := post(client, cfg, msg); err != nil {
			failed++
			log.Printf("post error: %v", err)
			return nil
		}
		sent++
		if cfg.pause > 0 {
			time.Sleep(cfg.pause)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("parse log: %v", err)
	}

	log.Printf("replay done: lines=%d messages=%d skipped=%d sent=%d failed=%d",
		stats.Lines, stats.Messages, stats.Skipped, sent, failed)
}

func post(client *http.Client, cfg config, msg *wire.IotMessage) error {
	body, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, cfg.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if cfg.secret != "" {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set(auth.HeaderIngestTimestamp, timestamp)
		req.Header.Set(auth.HeaderIngestSignature, auth.SignIngest([]byte(cfg.secret), timestamp, body))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, payload)
	}
	return nil
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.logPath, "log", "", "gateway log file to replay")
	flag.StringVar(&cfg.url, "url", "", "ingest endpoint, e.g. http://localhost:8080/ingest/iot/message")
	flag.StringVar(&cfg.secret, "secret", os.Getenv("INGEST_HMAC_SECRET"), "ingest hmac secret")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "parse and count without sending")
	flag.DurationVar(&cfg.pause, "pause", 0, "pause between requests")
	flag.Parse()
	return cfg
}
