package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// LoginAttemptRepository stores login attempts and answers analytics queries.
type LoginAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.LoginAttempt) error
	Totals(ctx context.Context) (total, successful int64, err error)
	CountBetween(ctx context.Context, from, to time.Time) (successful, failed int64, err error)
	Recent(ctx context.Context, limit int) ([]domain.LoginAttempt, error)
}

type loginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository constructs repository.
func NewLoginAttemptRepository(pool *pgxpool.Pool) LoginAttemptRepository {
	return &loginAttemptRepository{pool: pool}
}

func (r *loginAttemptRepository) Create(ctx context.Context, a *domain.LoginAttempt) error {
	const query = `
        INSERT INTO login_attempts (id, user_id, ip_address, user_agent, device_info, browser_info,
            success, attempted_at, city, country, latitude, longitude, accuracy_radius, timezone, isp,
            connection_type)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.UserID,
		a.IPAddress,
		a.UserAgent,
		a.DeviceInfo,
		a.BrowserInfo,
		a.Success,
		a.Timestamp,
		a.Location.City,
		a.Location.Country,
		a.Location.Latitude,
		a.Location.Longitude,
		a.Location.AccuracyRadius,
		a.Location.Timezone,
		a.Location.ISP,
		a.Location.ConnectionType,
	)
	return err
}

func (r *loginAttemptRepository) Totals(ctx context.Context) (int64, int64, error) {
	const query = `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE success)
        FROM login_attempts`
	var total, successful int64
	err := r.pool.QueryRow(ctx, query).Scan(&total, &successful)
	return total, successful, err
}

func (r *loginAttemptRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, int64, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE success), COUNT(*) FILTER (WHERE NOT success)
        FROM login_attempts
        WHERE attempted_at >= $1 AND attempted_at < $2`
	var successful, failed int64
	err := r.pool.QueryRow(ctx, query, from, to).Scan(&successful, &failed)
	return successful, failed, err
}

func (r *loginAttemptRepository) Recent(ctx context.Context, limit int) ([]domain.LoginAttempt, error) {
	const query = `
        SELECT id::text, user_id, ip_address, user_agent, device_info, browser_info, success, attempted_at,
            city, country, latitude, longitude, accuracy_radius, timezone, isp, connection_type
        FROM login_attempts
        ORDER BY attempted_at DESC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var a domain.LoginAttempt
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.IPAddress,
			&a.UserAgent,
			&a.DeviceInfo,
			&a.BrowserInfo,
			&a.Success,
			&a.Timestamp,
			&a.Location.City,
			&a.Location.Country,
			&a.Location.Latitude,
			&a.Location.Longitude,
			&a.Location.AccuracyRadius,
			&a.Location.Timezone,
			&a.Location.ISP,
			&a.Location.ConnectionType,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
