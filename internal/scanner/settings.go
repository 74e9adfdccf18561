package scanner

import (
	"context"
	"fmt"

	"go-openclaw-scanner/internal/models"
	"go-openclaw-scanner/internal/ports"
)

// UpdateSettings applies the fields that changed and persists the result.
// Unchanged fields leave the schedule and sleep prevention untouched. Once the
// engine is closed the settings are only persisted.
func (s *Scanner) UpdateSettings(ctx context.Context, next models.ScannerSettings) error {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	next = next.Clone()
	if next.Schedule != nil && *next.Schedule == "" {
		next.Schedule = nil
	}

	prev := s.Settings()
	if s.Running() {
		if err := s.applySettings(prev, next); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()

	if err := s.deps.Settings.Save(next); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}
	return nil
}

// applySettings reconciles the schedule and sleep prevention from prev to
// next. The new trigger is registered before the old one is stopped, so an
// invalid expression leaves the running schedule in place.
func (s *Scanner) applySettings(prev, next models.ScannerSettings) error {
	if expr := next.ScheduleExpr(); prev.ScheduleExpr() != expr {
		if err := s.reschedule(expr); err != nil {
			return err
		}
	}

	if prev.PreventSleep != next.PreventSleep {
		s.setSleepPrevention(next.PreventSleep)
	}
	return nil
}

func (s *Scanner) reschedule(expr string) error {
	var fresh ports.Trigger
	if expr != "" {
		if s.deps.Scheduler == nil {
			return fmt.Errorf("schedule %q: no scheduler configured", expr)
		}
		t, err := s.deps.Scheduler.Schedule(expr, func() {
			if err := s.ScanAllLinks(s.runCtx); err != nil {
				s.logger.Error().Err(err).Msg("❌ Scheduled scan failed")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %q: %w", expr, err)
		}
		fresh = t
	}

	s.mu.Lock()
	old := s.trigger
	s.trigger = fresh
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if expr == "" {
		s.logger.Info().Msg("⏸️ Scheduled scans disabled")
	} else {
		s.logger.Info().Str("schedule", expr).Msg("⏰ Scheduled scans enabled")
	}
	return nil
}

func (s *Scanner) setSleepPrevention(enabled bool) {
	s.mu.Lock()
	old := s.sleepHandle
	s.sleepHandle = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Release(); err != nil {
			s.logger.Warn().Err(err).Msg("⚠️ Failed to release sleep prevention")
		}
	}
	if !enabled || s.deps.Power == nil {
		return
	}

	h, err := s.deps.Power.Prevent()
	if err != nil {
		s.logger.Warn().Err(err).Msg("⚠️ Could not prevent system sleep")
		return
	}
	s.mu.Lock()
	s.sleepHandle = h
	s.mu.Unlock()
	s.logger.Info().Msg("☕ System sleep prevented")
}
