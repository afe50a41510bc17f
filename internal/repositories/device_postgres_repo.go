package repositories

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listTokensSQL = `
select fcm_token
  from device_registrations
 where service_center_id = $1
   and role = $2
   and fcm_token <> ''
 order by user_id`

// PostgresDeviceRepository 基于 device_registrations 表的设备注册表。
type PostgresDeviceRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewPostgresDeviceRepository 构造仓储。
func NewPostgresDeviceRepository(db *pgxpool.Pool, logger log.Logger) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{db: db, log: log.NewHelper(logger)}
}

// ListTokens 返回指定维修店与角色的非空 token。
func (r *PostgresDeviceRepository) ListTokens(ctx context.Context, shopID, role string) ([]string, error) {
	rows, err := r.db.Query(ctx, listTokensSQL, shopID, role)
	if err != nil {
		return nil, fmt.Errorf("device registrations: query: %w", err)
	}
	defer rows.Close()

	var (
		tokens []string
		seen   = make(map[string]struct{})
	)
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("device registrations: scan: %w", err)
		}
		tokens = appendToken(tokens, seen, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("device registrations: iterate: %w", err)
	}
	return tokens, nil
}
