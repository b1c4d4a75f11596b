package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"QuantGate/internal/domain/models"
	pkgch "QuantGate/pkg/clickhouse"
	applogger "QuantGate/pkg/logger"
)

const barsTable = "quantgate.snapshot_bars"

// SnapshotError reports a snapshot that failed verification.
type SnapshotError struct {
	Ref    string
	Reason models.ReasonCode
	Detail string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot %s: %s: %s", e.Ref, e.Reason, e.Detail)
}

// CHBarStore loads immutable bar snapshots from ClickHouse. Every load
// recomputes the content hash of the full snapshot and refuses to serve
// data that no longer matches its reference.
type CHBarStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return &CHBarStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load reads the full snapshot for (ref, symbol) in chronological order,
// verifies the content hash, then applies the requested time window. The
// hash covers the whole snapshot, so the window filter happens after
// verification.
func (s *CHBarStore) Load(ctx context.Context, snapshotRef, symbol string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()
	const q = `
        SELECT symbol, ts, open, high, low, close, volume
        FROM ` + barsTable + `
        WHERE snapshot_ref = ? AND symbol = ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, q, snapshotRef, symbol)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse snapshot query error",
				applogger.String("snapshot", snapshotRef),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	bars := make([]models.Bar, 0, 4096)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timestamp = b.Timestamp.UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if got := ContentHash(bars); got != snapshotRef {
		if s.l != nil {
			s.l.Error("snapshot content hash mismatch",
				applogger.String("snapshot", snapshotRef),
				applogger.String("computed", got),
				applogger.String("symbol", symbol),
			)
		}
		return nil, &SnapshotError{
			Ref:    snapshotRef,
			Reason: models.ReasonSnapshotHash,
			Detail: fmt.Sprintf("stored data hashes to %s", got),
		}
	}

	out := bars
	if !from.IsZero() || !to.IsZero() {
		out = out[:0:0]
		for _, b := range bars {
			if !from.IsZero() && b.Timestamp.Before(from) {
				continue
			}
			if !to.IsZero() && b.Timestamp.After(to) {
				continue
			}
			out = append(out, b)
		}
	}

	if s.l != nil {
		s.l.Info("snapshot loaded",
			applogger.String("snapshot", snapshotRef),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// ContentHash computes the canonical content address of a bar series:
// sha256 over one fixed-format line per bar, in series order.
func ContentHash(bars []models.Bar) string {
	h := sha256.New()
	var sb strings.Builder
	for _, b := range bars {
		sb.Reset()
		sb.WriteString(b.Symbol)
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatInt(b.Timestamp.UnixMilli(), 10))
		for _, f := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		sb.WriteByte('\n')
		h.Write([]byte(sb.String()))
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
