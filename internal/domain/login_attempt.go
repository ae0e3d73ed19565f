package domain

import "time"

// Location is the geolocation resolved for a client IP.
type Location struct {
	City           string  `json:"city"`
	Country        string  `json:"country"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyRadius int     `json:"accuracy_radius"`
	Timezone       string  `json:"timezone"`
	ISP            string  `json:"isp"`
	ConnectionType string  `json:"connection_type"`
}

// Label renders "City, Country" for display.
func (l Location) Label() string {
	if l.City == "" {
		return l.Country
	}
	if l.Country == "" {
		return l.City
	}
	return l.City + ", " + l.Country
}

// LoginAttempt records a single login try, successful or not.
type LoginAttempt struct {
	ID          string
	UserID      *int64
	IPAddress   string
	UserAgent   string
	DeviceInfo  string
	BrowserInfo string
	Success     bool
	Location    Location
	Timestamp   time.Time
}

// HourlyAttempts buckets login attempts for one hour.
type HourlyAttempts struct {
	Hour       string `json:"hour"`
	Successful int64  `json:"successful"`
	Failed     int64  `json:"failed"`
}

// Analytics summarizes login activity for the admin dashboard.
type Analytics struct {
	TotalAttempts      int64
	SuccessfulAttempts int64
	FailedAttempts     int64
	RecentAttempts     []LoginAttempt
	HourlyAttempts     []HourlyAttempts
}
