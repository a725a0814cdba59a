package health

import "context"

// Pinger is satisfied by the storage repository
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresProvider reports database reachability
type PostgresProvider struct {
	BaseProvider
	db Pinger
}

// NewPostgresProvider wraps an open database handle
func NewPostgresProvider(db Pinger) *PostgresProvider {
	return &PostgresProvider{
		BaseProvider: BaseProvider{serviceType: "postgres"},
		db:           db,
	}
}

// HealthCheck pings the database
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	return p.db.Ping(ctx)
}
