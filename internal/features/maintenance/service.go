// Package maintenance runs the operational jobs around the bot: daily data
// backups, a liveness watchdog and the health snapshot for the HTTP API.
package maintenance

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"rewards-bot-backend/internal/common/logger"
	tg "rewards-bot-backend/internal/platform/telegram"
)

// Pinger is the liveness probe the watchdog runs; in production it is the
// bot client's GetMe.
type Pinger interface {
	GetMe(ctx context.Context) (*tg.User, error)
}

type Config struct {
	DataDir          string
	BackupDir        string
	BackupTime       string // "15:04" wall-clock
	HeartbeatFile    string
	WatchdogInterval time.Duration
	WatchdogMaxFails int
	AdminGroupID     int64
}

type Service struct {
	cfg     Config
	pinger  Pinger
	sender  notifySender
	started time.Time
	// exit is swapped out in tests; defaults to os.Exit.
	exit func(int)
}

type notifySender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *tg.SendOptions) (*tg.Message, error)
}

func New(cfg Config, pinger Pinger, sender notifySender) *Service {
	return &Service{
		cfg:     cfg,
		pinger:  pinger,
		sender:  sender,
		started: time.Now(),
		exit:    os.Exit,
	}
}

// Health is the snapshot served by GET /health. Pure read, no side effects.
type Health struct {
	Status       string  `json:"status"`
	UptimeSec    float64 `json:"uptime_sec"`
	DataDirOK    bool    `json:"data_dir_ok"`
	HeartbeatAge float64 `json:"heartbeat_age_sec,omitempty"`
}

func (s *Service) HealthCheck() Health {
	h := Health{
		Status:    "ok",
		UptimeSec: time.Since(s.started).Seconds(),
	}
	if info, err := os.Stat(s.cfg.DataDir); err == nil && info.IsDir() {
		h.DataDirOK = true
	} else {
		h.Status = "degraded"
	}
	if s.cfg.HeartbeatFile != "" {
		if info, err := os.Stat(s.cfg.HeartbeatFile); err == nil {
			h.HeartbeatAge = time.Since(info.ModTime()).Seconds()
		}
	}
	return h
}

// RunBackups fires a backup once per day at the configured wall-clock time.
func (s *Service) RunBackups(ctx context.Context) {
	for {
		wait, err := untilNext(s.cfg.BackupTime, time.Now())
		if err != nil {
			logger.Error().Err(err).Str("backup_time", s.cfg.BackupTime).Msg("invalid backup time, backups disabled")
			return
		}
		logger.Info().Dur("in", wait).Msg("next backup scheduled")
		select {
		case <-time.After(wait):
			s.BackupOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// BackupOnce zips the data directory and reports the outcome to the admin
// group. Failure is reported and logged, never fatal.
func (s *Service) BackupOnce(ctx context.Context) {
	name := fmt.Sprintf("backup_%s.zip", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.cfg.BackupDir, name)
	size, err := s.writeBackup(path)
	if err != nil {
		logger.Error().Err(err).Msg("backup failed")
		s.notify(ctx, fmt.Sprintf("Backup FAILED: %v", err))
		return
	}
	logger.Info().Str("path", path).Int64("size", size).Msg("backup written")
	s.notify(ctx, fmt.Sprintf("Backup OK: %s (%d bytes)", name, size))
}

func (s *Service) writeBackup(path string) (int64, error) {
	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return 0, fmt.Errorf("create backup dir: %w", err)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.Walk(s.cfg.DataDir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.cfg.DataDir, p)
		if err != nil {
			return err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("zip data dir: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write backup: %w", err)
	}
	return int64(buf.Len()), nil
}

// RunWatchdog pings the API every interval and touches the heartbeat file.
// After max consecutive failures the process exits so the supervisor can
// restart it.
func (s *Service) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	fails := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			_, err := s.pinger.GetMe(pingCtx)
			cancel()
			if err != nil {
				fails++
				logger.Warn().Err(err).Int("consecutive", fails).Msg("watchdog ping failed")
				if fails >= s.cfg.WatchdogMaxFails {
					logger.Error().Int("fails", fails).Msg("watchdog limit reached, exiting for restart")
					s.exit(1)
					return
				}
				continue
			}
			fails = 0
			s.touchHeartbeat()
		}
	}
}

func (s *Service) touchHeartbeat() {
	if s.cfg.HeartbeatFile == "" {
		return
	}
	now := time.Now()
	if err := os.WriteFile(s.cfg.HeartbeatFile, []byte(now.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		logger.Warn().Err(err).Msg("heartbeat write failed")
	}
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.sender == nil || s.cfg.AdminGroupID == 0 {
		return
	}
	if _, err := s.sender.SendMessage(ctx, s.cfg.AdminGroupID, text, nil); err != nil {
		logger.Warn().Err(err).Msg("maintenance notify failed")
	}
}

// untilNext computes the wait until the next wall-clock occurrence of
// hhmm ("15:04").
func untilNext(hhmm string, now time.Time) (time.Duration, error) {
	at, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("parse backup time %q: %w", hhmm, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now), nil
}
