package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/spec-kit/auth-service/internal/domain"
)

// ip-api does not report an accuracy radius; this is its documented typical error in km.
const ipAPIAccuracyRadius = 100

// IPAPIProvider queries the ip-api.com JSON endpoint.
type IPAPIProvider struct {
	client *resty.Client
}

type ipAPIResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	City     string  `json:"city"`
	Country  string  `json:"country"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`
	ISP      string  `json:"isp"`
	Mobile   bool    `json:"mobile"`
}

// NewIPAPIProvider builds a provider against baseURL, e.g. http://ip-api.com/json.
func NewIPAPIProvider(baseURL string, timeout time.Duration) *IPAPIProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &IPAPIProvider{client: client}
}

// Name implements Provider.
func (p *IPAPIProvider) Name() string {
	return "ip-api"
}

// Lookup implements Provider.
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*domain.Location, error) {
	var body ipAPIResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("ip", ip).
		SetQueryParam("fields", "status,message,country,city,lat,lon,timezone,isp,mobile").
		SetResult(&body).
		Get("/{ip}")
	if err != nil {
		return nil, fmt.Errorf("ip-api request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ip-api status %d", resp.StatusCode())
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("ip-api lookup failed: %s", body.Message)
	}

	connection := "broadband"
	if body.Mobile {
		connection = "mobile"
	}
	return &domain.Location{
		City:           body.City,
		Country:        body.Country,
		Latitude:       body.Lat,
		Longitude:      body.Lon,
		AccuracyRadius: ipAPIAccuracyRadius,
		Timezone:       body.Timezone,
		ISP:            body.ISP,
		ConnectionType: connection,
	}, nil
}
