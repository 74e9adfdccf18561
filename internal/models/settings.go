package models

// ScannerSettings is the user-facing engine configuration persisted to disk.
type ScannerSettings struct {
	// Schedule is a cron expression; nil or empty disables scheduled scans.
	Schedule      *string `json:"cronRule,omitempty"`
	PreventSleep  bool    `json:"preventSleep"`
	Sound         bool    `json:"useSound"`
	EmailAlerts   bool    `json:"enableEmailAlerts"`
	InAppBrowsing bool    `json:"inAppBrowsing"`
}

func DefaultScannerSettings() ScannerSettings {
	return ScannerSettings{
		PreventSleep:  false,
		Sound:         true,
		EmailAlerts:   false,
		InAppBrowsing: true,
	}
}

// ScheduleExpr returns the schedule or "" when disabled.
func (s ScannerSettings) ScheduleExpr() string {
	if s.Schedule == nil {
		return ""
	}
	return *s.Schedule
}

func (s ScannerSettings) Clone() ScannerSettings {
	out := s
	if s.Schedule != nil {
		expr := *s.Schedule
		out.Schedule = &expr
	}
	return out
}
