package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRBACIntegritySweep reports rows that escaped referential integrity:
// role_permissions pointing at missing roles or permissions, and profiles
// assigned a role that no longer exists. The sweep only reports; the schema's
// foreign keys make findings here a sign of out-of-band writes.
func RunRBACIntegritySweep(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	checks := []struct {
		name  string
		query string
	}{
		{
			name: "role_permissions_orphan_role",
			query: `SELECT COUNT(*) FROM role_permissions rp
				LEFT JOIN roles r ON r.id = rp.role_id WHERE r.id IS NULL`,
		},
		{
			name: "role_permissions_orphan_permission",
			query: `SELECT COUNT(*) FROM role_permissions rp
				LEFT JOIN permissions p ON p.id = rp.permission_id WHERE p.id IS NULL`,
		},
		{
			name: "profiles_orphan_role",
			query: `SELECT COUNT(*) FROM profiles pr
				LEFT JOIN roles r ON r.id = pr.role_id
				WHERE pr.role_id IS NOT NULL AND r.id IS NULL`,
		},
	}

	for _, check := range checks {
		var count int64
		if err := pool.QueryRow(ctx, check.query).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			logger.Warn("rbac integrity violation",
				slog.String("check", check.name), slog.Int64("rows", count))
		}
	}
	logger.Info("rbac integrity sweep completed", slog.String("job", "rbac_integrity"))
	return nil
}

// NewRBACIntegrityHandler adapts the sweep into an Asynq handler.
func NewRBACIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return RunRBACIntegritySweep(ctx, pool, logger)
	}
}
