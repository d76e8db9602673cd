package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/repository"
)

var _ repository.OrderStore = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = "order_id, user_id, plan_id, plan_name, amount, plan_duration_days, status, activated, synthesized, created_at, updated_at"

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var status string
	err := row.Scan(&o.OrderID, &o.UserID, &o.PlanID, &o.PlanName, &o.Amount, &o.PlanDurationDays,
		&status, &o.Activated, &o.Synthesized, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return o, nil
}

func (r *orderRepo) Get(ctx context.Context, orderID string) (*model.Order, error) {
	q := fmt.Sprintf("SELECT %s FROM orders WHERE order_id=$1;", orderColumns)
	o, err := scanOrder(r.pool.QueryRow(ctx, q, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return o, nil
}

func (r *orderRepo) Put(ctx context.Context, o *model.Order) error {
	const q = `
INSERT INTO orders (order_id, user_id, plan_id, plan_name, amount, plan_duration_days, status, activated, synthesized, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (order_id) DO UPDATE SET
  user_id=$2, plan_id=$3, plan_name=$4, amount=$5, plan_duration_days=$6, status=$7, activated=$8, synthesized=$9, updated_at=$11;`
	_, err := r.pool.Exec(ctx, q, o.OrderID, o.UserID, o.PlanID, o.PlanName, o.Amount, o.PlanDurationDays,
		string(o.Status), o.Activated, o.Synthesized, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *orderRepo) CompareAndSwapStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	const q = `UPDATE orders SET status=$3, updated_at=NOW() WHERE order_id=$1 AND status=$2;`
	tag, err := r.pool.Exec(ctx, q, orderID, string(from), string(to))
	if err != nil {
		return false, translateError(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Distinguish "status moved" from "order missing".
	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_id=$1);", orderID).Scan(&exists); err != nil {
		return false, translateError(err)
	}
	if !exists {
		return false, domain.ErrOrderNotFound
	}
	return false, nil
}

func (r *orderRepo) MarkActivated(ctx context.Context, orderID string) (bool, error) {
	const q = `UPDATE orders SET activated=TRUE, updated_at=NOW() WHERE order_id=$1 AND activated=FALSE;`
	tag, err := r.pool.Exec(ctx, q, orderID)
	if err != nil {
		return false, translateError(err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE order_id=$1);", orderID).Scan(&exists); err != nil {
		return false, translateError(err)
	}
	if !exists {
		return false, domain.ErrOrderNotFound
	}
	return false, nil
}

// listPendingQuery omits the LIMIT clause for limit <= 0, which all store
// drivers treat as "no limit".
func listPendingQuery(limit int) string {
	q := fmt.Sprintf("SELECT %s FROM orders WHERE status=$1 AND created_at < $2 ORDER BY created_at", orderColumns)
	if limit > 0 {
		q += " LIMIT $3"
	}
	return q + ";"
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	args := []interface{}{string(model.OrderStatusPending), cutoff}
	if limit > 0 {
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, listPendingQuery(limit), args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *orderRepo) List(ctx context.Context) ([]*model.Order, error) {
	q := fmt.Sprintf("SELECT %s FROM orders ORDER BY created_at;", orderColumns)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *orderRepo) Reset(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM orders;")
	if err != nil {
		return translateError(err)
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]*model.Order, error) {
	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, translateError(err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// translateError folds driver errors into domain errors. Unique violations
// map to ErrAlreadyExists; everything else is an opaque storage failure.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("%w: %s (%s)", domain.ErrOperationFailed, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}
