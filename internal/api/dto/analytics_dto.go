package dto

import (
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
)

// LoginAttemptResponse is one row of the recent attempts list.
type LoginAttemptResponse struct {
	IPAddress      string    `json:"ip_address"`
	Timestamp      time.Time `json:"timestamp"`
	Success        bool      `json:"success"`
	Location       string    `json:"location"`
	UserAgent      string    `json:"user_agent"`
	DeviceInfo     string    `json:"device_info"`
	BrowserInfo    string    `json:"browser_info"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	Timezone       string    `json:"timezone,omitempty"`
	ISP            string    `json:"isp,omitempty"`
	ConnectionType string    `json:"connection_type,omitempty"`
}

// AnalyticsResponse is the admin dashboard payload.
type AnalyticsResponse struct {
	TotalAttempts      int64                   `json:"total_attempts"`
	SuccessfulAttempts int64                   `json:"successful_attempts"`
	FailedAttempts     int64                   `json:"failed_attempts"`
	RecentAttempts     []LoginAttemptResponse  `json:"recent_attempts"`
	HourlyAttempts     []domain.HourlyAttempts `json:"hourly_attempts"`
}

// NewAnalyticsResponse maps the domain summary. Zero coordinates are
// rendered as null.
func NewAnalyticsResponse(a *domain.Analytics) AnalyticsResponse {
	recent := make([]LoginAttemptResponse, 0, len(a.RecentAttempts))
	for _, at := range a.RecentAttempts {
		row := LoginAttemptResponse{
			IPAddress:      at.IPAddress,
			Timestamp:      at.Timestamp,
			Success:        at.Success,
			Location:       at.Location.Label(),
			UserAgent:      at.UserAgent,
			DeviceInfo:     at.DeviceInfo,
			BrowserInfo:    at.BrowserInfo,
			Timezone:       at.Location.Timezone,
			ISP:            at.Location.ISP,
			ConnectionType: at.Location.ConnectionType,
		}
		if at.Location.Latitude != 0 || at.Location.Longitude != 0 {
			lat, lon := at.Location.Latitude, at.Location.Longitude
			row.Latitude, row.Longitude = &lat, &lon
		}
		recent = append(recent, row)
	}
	hourly := a.HourlyAttempts
	if hourly == nil {
		hourly = []domain.HourlyAttempts{}
	}
	return AnalyticsResponse{
		TotalAttempts:      a.TotalAttempts,
		SuccessfulAttempts: a.SuccessfulAttempts,
		FailedAttempts:     a.FailedAttempts,
		RecentAttempts:     recent,
		HourlyAttempts:     hourly,
	}
}
