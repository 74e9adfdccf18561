package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go-openclaw-scanner/internal/models"
	"go-openclaw-scanner/internal/ports"
)

const notificationPreview = 3

// ShowNewJobsNotification tells the user about newly found listings. The
// handle is tracked until the notification is clicked or dismissed.
func (s *Scanner) ShowNewJobsNotification(ctx context.Context, listings []models.JobListing) {
	if len(listings) == 0 || s.deps.Notifier == nil {
		return
	}

	n := ports.Notification{
		ID:     uuid.NewString(),
		Title:  notificationTitle(len(listings)),
		Body:   notificationBody(listings),
		Silent: !s.Settings().Sound,
	}
	h, err := s.deps.Notifier.Show(ctx, n)
	if err != nil {
		s.logger.Warn().Err(err).Msg("⚠️ Failed to show notification")
		return
	}

	s.mu.Lock()
	s.notifications[n.ID] = h
	s.mu.Unlock()
}

// HandleNotificationAction routes a click or dismissal of a notification
// shown by ShowNewJobsNotification.
func (s *Scanner) HandleNotificationAction(ctx context.Context, id string, action ports.NotificationAction) {
	s.mu.Lock()
	h, ok := s.notifications[id]
	delete(s.notifications, id)
	s.mu.Unlock()

	if !ok {
		s.logger.Debug().Str("notification_id", id).Msg("Unknown notification")
		return
	}

	switch action {
	case ports.ActionOpen:
		if s.deps.View == nil {
			return
		}
		if err := s.deps.View.OpenListings(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("⚠️ Failed to open listings view")
		}
	case ports.ActionDismiss:
		if err := h.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to close notification")
		}
	}
}

// PendingNotifications is the number of notifications not yet acted on.
func (s *Scanner) PendingNotifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func notificationTitle(n int) string {
	if n == 1 {
		return "Found 1 new job"
	}
	return fmt.Sprintf("Found %d new jobs", n)
}

func notificationBody(listings []models.JobListing) string {
	parts := make([]string, 0, notificationPreview)
	for _, l := range listings[:min(notificationPreview, len(listings))] {
		parts = append(parts, fmt.Sprintf("%s at %s", l.Title, l.Company))
	}
	body := strings.Join(parts, ", ")
	if rest := len(listings) - notificationPreview; rest > 0 {
		body += fmt.Sprintf(" and %d others", rest)
	}
	return body
}
