// Package geo resolves client IP addresses to approximate locations for login
// attempt records.
package geo

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

// Provider is one lookup source in the fallback chain.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*domain.Location, error)
}

// Cache stores resolved locations by IP.
type Cache interface {
	Get(ctx context.Context, ip string) (*domain.Location, bool)
	Set(ctx context.Context, ip string, loc domain.Location)
}

// Locator walks providers in order and caches the first answer.
type Locator struct {
	providers []Provider
	cache     Cache
	logger    *zap.Logger
}

// NewLocator builds a locator. cache may be nil.
func NewLocator(cache Cache, logger *zap.Logger, providers ...Provider) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{providers: providers, cache: cache, logger: logger}
}

// LocalLocation is reported for loopback and private addresses.
func LocalLocation() domain.Location {
	return domain.Location{
		City:           "Local",
		Country:        "Local",
		Timezone:       "UTC",
		ISP:            "Local Network",
		ConnectionType: "Local",
	}
}

// UnknownLocation is reported when no provider can answer.
func UnknownLocation() domain.Location {
	return domain.Location{
		City:           "Unknown",
		Country:        "Unknown",
		Timezone:       "UTC",
		ISP:            "Unknown",
		ConnectionType: "Unknown",
	}
}

// Locate never fails; lookups that cannot be answered yield UnknownLocation.
func (l *Locator) Locate(ctx context.Context, ip string) domain.Location {
	if ip == "" || ip == "localhost" {
		return LocalLocation()
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		l.logger.Warn("invalid ip address", zap.String("ip", ip))
		return UnknownLocation()
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return LocalLocation()
	}

	if l.cache != nil {
		if loc, ok := l.cache.Get(ctx, ip); ok {
			return *loc
		}
	}

	for _, p := range l.providers {
		loc, err := p.Lookup(ctx, ip)
		if err != nil {
			l.logger.Warn("geolocation lookup failed",
				zap.String("provider", p.Name()),
				zap.String("ip", ip),
				zap.Error(err))
			continue
		}
		if l.cache != nil {
			l.cache.Set(ctx, ip, *loc)
		}
		return *loc
	}
	return UnknownLocation()
}
