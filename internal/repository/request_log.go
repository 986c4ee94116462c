package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"solpay_gateway/internal/domain"
)

// RequestLog appends one JSON line per created payment request to a file
// named after the UTC day. Nothing reads these files back.
type RequestLog struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

type requestLogRecord struct {
	Ref       string `json:"ref"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Memo      string `json:"memo"`
	Label     string `json:"label"`
	Message   string `json:"message"`
	Date      string `json:"date"`
}

// NewRequestLog returns nil when dir is empty; a nil *RequestLog discards
// records.
func NewRequestLog(dir string) *RequestLog {
	if dir == "" {
		return nil
	}
	return &RequestLog{dir: dir, now: time.Now}
}

func (l *RequestLog) Append(req domain.PendingPaymentRequest) error {
	if l == nil {
		return nil
	}

	now := l.now().UTC()
	line, err := json.Marshal(requestLogRecord{
		Ref:       req.Reference,
		Recipient: req.Recipient,
		Amount:    req.Amount.String(),
		Currency:  string(req.Currency),
		Memo:      req.Memo,
		Label:     req.Label,
		Message:   req.Message,
		Date:      now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create request log dir: %w", err)
	}

	path := filepath.Join(l.dir, now.Format(time.DateOnly)+".json")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write request log: %w", err)
	}
	return nil
}
