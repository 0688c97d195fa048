// Package payments is a mock payments ToolAdapter. It is the one place in
// Aegis that persists anything to disk: created-payment business records,
// via the pure-Go modernc.org/sqlite driver. This is deliberately scoped
// away from decisions and approvals, which stay in-memory — only the
// adapter's own business state survives a restart, exactly as a real
// payments tool's database would.
package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Adapter implements gateway.ToolAdapter for the "payments" tool.
type Adapter struct {
	db *sql.DB
}

// New opens (and migrates) the sqlite file at path. Use ":memory:" for an
// ephemeral store in tests.
func New(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open payments db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	amount REAL,
	currency TEXT,
	vendor_id TEXT,
	params_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate payments db: %w", err)
	}

	return &Adapter{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Invoke handles any action against the payments tool (create, refund, …)
// by recording a new business record and echoing it back.
func (a *Adapter) Invoke(ctx context.Context, tool, action string, params map[string]any) (map[string]any, error) {
	id := uuid.New().String()
	amount, _ := floatParam(params, "amount")
	currency, _ := params["currency"].(string)
	vendorID, _ := params["vendor_id"].(string)
	createdAt := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO payments (id, action, amount, currency, vendor_id, params_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, action, amount, currency, vendorID, string(paramsJSON), createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return map[string]any{
		"id":         id,
		"tool":       tool,
		"action":     action,
		"amount":     amount,
		"currency":   currency,
		"vendor_id":  vendorID,
		"status":     "created",
		"created_at": createdAt.Format(time.RFC3339),
	}, nil
}

func floatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
