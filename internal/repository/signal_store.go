package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgch "CoinPulse/pkg/clickhouse"
	applogger "CoinPulse/pkg/logger"
)

// ClickHouseSchema returns the DDL for the signal log in database.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.signals (
			id           String,
			asset_symbol LowCardinality(String),
			type         LowCardinality(String),
			strength     UInt8,
			magnitude    Float64,
			description  String,
			sources      String,
			ts           DateTime64(3, 'UTC')
		) ENGINE = MergeTree ORDER BY (asset_symbol, ts)`, database),
	}
}

// ClickHouseSignalStore is the append-only signal log.
type ClickHouseSignalStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseSignalStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{db: ch.DB(), table: ch.Database() + ".signals", l: l}
}

func (s *ClickHouseSignalStore) Append(ctx context.Context, sig *models.Signal) error {
	sources, err := json.Marshal(sig.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (id, asset_symbol, type, strength, magnitude, description, sources, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, q,
		sig.ID,
		sig.AssetSymbol,
		string(sig.Type),
		uint8(sig.Strength),
		sig.Magnitude,
		sig.Description,
		string(sources),
		sig.Timestamp,
	); err != nil {
		s.l.Error("clickhouse signal insert error",
			applogger.String("table", s.table),
			applogger.String("asset", sig.AssetSymbol),
			applogger.Error(err),
		)
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *ClickHouseSignalStore) Query(ctx context.Context, q models.SignalQuery) ([]models.Signal, int64, error) {
	where := "1 = 1"
	args := make([]interface{}, 0, len(q.Assets)+2)
	if len(q.Assets) > 0 {
		ph := make([]string, len(q.Assets))
		for i, a := range q.Assets {
			ph[i] = "?"
			args = append(args, a)
		}
		where = fmt.Sprintf("asset_symbol IN (%s)", strings.Join(ph, ", "))
	}

	var total uint64
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s WHERE %s", s.table, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count signals: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT id, asset_symbol, type, strength, magnitude, description, sources, ts
		FROM %s
		WHERE %s
		ORDER BY ts DESC
		LIMIT ? OFFSET ?`, s.table, where)
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, q.Offset)...)
	if err != nil {
		s.l.Error("clickhouse signal query error", applogger.String("table", s.table), applogger.Error(err))
		return nil, 0, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Signal, 0, limit)
	for rows.Next() {
		var (
			sig      models.Signal
			kind     string
			strength uint8
			sources  string
			ts       time.Time
		)
		if err := rows.Scan(&sig.ID, &sig.AssetSymbol, &kind, &strength, &sig.Magnitude, &sig.Description, &sources, &ts); err != nil {
			return nil, 0, fmt.Errorf("scan signal: %w", err)
		}
		sig.Type = models.Kind(kind)
		sig.Strength = int(strength)
		sig.Timestamp = ts.UTC()
		if sources != "" && sources != "null" {
			if err := json.Unmarshal([]byte(sources), &sig.Sources); err != nil {
				return nil, 0, fmt.Errorf("decode sources: %w", err)
			}
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, int64(total), nil
}

// Close is a no-op; the client owns the connection.
func (s *ClickHouseSignalStore) Close() error { return nil }

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)
