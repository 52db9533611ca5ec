package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scalpbot/src/position"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store PostgreSQL交易历史存储
// 已结束的交易（部分与全部平仓）在此落盘
type Store struct {
	db *sql.DB
}

// TradeRecord 交易记录
type TradeRecord struct {
	ID         int64                `json:"id"`
	PositionID string               `json:"position_id"`
	Symbol     string               `json:"symbol"`
	Side       string               `json:"side"`
	Reason     position.CloseReason `json:"reason"`
	Quantity   decimal.Decimal      `json:"quantity"`
	EntryPrice decimal.Decimal      `json:"entry_price"`
	ExitPrice  decimal.Decimal      `json:"exit_price"`
	PnL        decimal.Decimal      `json:"pnl"`
	Fee        decimal.Decimal      `json:"fee"`
	OpenedAt   time.Time            `json:"opened_at"`
	ClosedAt   time.Time            `json:"closed_at"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewStore 创建交易历史存储
func NewStore(config DatabaseConfig) (*Store, error) {
	sslmode := config.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	psqlInfo := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, sslmode)

	db, err := sql.Open("postgres", psqlInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema 初始化交易记录表
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			position_id VARCHAR(64) NOT NULL,
			symbol VARCHAR(32) NOT NULL,
			side VARCHAR(8) NOT NULL,
			reason VARCHAR(32) NOT NULL,
			quantity NUMERIC(30, 12) NOT NULL,
			entry_price NUMERIC(30, 12) NOT NULL,
			exit_price NUMERIC(30, 12) NOT NULL,
			pnl NUMERIC(30, 12) NOT NULL,
			fee NUMERIC(30, 12) NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create trades table: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol_closed_at ON trades (symbol, closed_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create trades index: %w", err)
	}

	return nil
}

// SaveTrade 保存一条交易记录
func (s *Store) SaveTrade(ctx context.Context, trade *TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			position_id, symbol, side, reason,
			quantity, entry_price, exit_price, pnl, fee,
			opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		trade.PositionID, trade.Symbol, trade.Side, string(trade.Reason),
		trade.Quantity, trade.EntryPrice, trade.ExitPrice, trade.PnL, trade.Fee,
		trade.OpenedAt, trade.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}

	return nil
}

// GetRecentTrades 查询指定交易对最近的交易记录
func (s *Store) GetRecentTrades(ctx context.Context, symbol string, limit int) ([]*TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position_id, symbol, side, reason,
		       quantity, entry_price, exit_price, pnl, fee,
		       opened_at, closed_at, created_at
		FROM trades
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		trade := &TradeRecord{}
		var reason string
		err := rows.Scan(
			&trade.ID, &trade.PositionID, &trade.Symbol, &trade.Side, &reason,
			&trade.Quantity, &trade.EntryPrice, &trade.ExitPrice, &trade.PnL, &trade.Fee,
			&trade.OpenedAt, &trade.ClosedAt, &trade.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trade.Reason = position.CloseReason(reason)
		trades = append(trades, trade)
	}

	return trades, rows.Err()
}
