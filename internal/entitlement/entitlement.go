// Package entitlement decides whether a user may run a paid analysis.
package entitlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotEntitled is returned when a user has no remaining analysis credit.
var ErrNotEntitled = errors.New("entitlement: user is not entitled to analysis")

// Checker reports whether a user can start an analysis and consumes one
// credit when they do.
type Checker interface {
	Check(ctx context.Context, userID string) error
	Consume(ctx context.Context, userID string) error
}

// StaticChecker allows everyone. Used in development and tests.
type StaticChecker struct {
	Allow bool
}

func (c StaticChecker) Check(context.Context, string) error {
	if !c.Allow {
		return ErrNotEntitled
	}
	return nil
}

func (c StaticChecker) Consume(context.Context, string) error {
	if !c.Allow {
		return ErrNotEntitled
	}
	return nil
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const creditsSchema = `
CREATE TABLE IF NOT EXISTS analysis_credits (
    user_id TEXT PRIMARY KEY,
    credits INT NOT NULL DEFAULT 0
);
`

// PostgresChecker backs entitlements with a per-user credit balance.
type PostgresChecker struct {
	pool pgxPool
}

func NewPostgresChecker(pool pgxPool) *PostgresChecker {
	if pool == nil {
		panic("entitlement: NewPostgresChecker requires a pool")
	}
	return &PostgresChecker{pool: pool}
}

func (c *PostgresChecker) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, creditsSchema); err != nil {
		return fmt.Errorf("entitlement: ensure credits schema: %w", err)
	}
	return nil
}

func (c *PostgresChecker) Check(ctx context.Context, userID string) error {
	var credits int
	err := c.pool.QueryRow(ctx,
		`SELECT credits FROM analysis_credits WHERE user_id = $1`, userID,
	).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotEntitled
	}
	if err != nil {
		return fmt.Errorf("entitlement: check user %s: %w", userID, err)
	}
	if credits <= 0 {
		return ErrNotEntitled
	}
	return nil
}

// Consume decrements one credit atomically. It fails with ErrNotEntitled
// when the balance is already zero.
func (c *PostgresChecker) Consume(ctx context.Context, userID string) error {
	tag, err := c.pool.Exec(ctx,
		`UPDATE analysis_credits SET credits = credits - 1 WHERE user_id = $1 AND credits > 0`,
		userID)
	if err != nil {
		return fmt.Errorf("entitlement: consume credit for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotEntitled
	}
	return nil
}

// Grant adds credits to a user's balance, creating the row if needed.
func (c *PostgresChecker) Grant(ctx context.Context, userID string, credits int) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO analysis_credits (user_id, credits) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET credits = analysis_credits.credits + EXCLUDED.credits`,
		userID, credits)
	if err != nil {
		return fmt.Errorf("entitlement: grant credits to user %s: %w", userID, err)
	}
	return nil
}
