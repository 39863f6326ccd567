package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// DeliveryRow is the analytics shape of one delivery attempt.
type DeliveryRow struct {
	DeliveryID   string               `bigquery:"delivery_id"`
	UserID       string               `bigquery:"user_id"`
	Kind         string               `bigquery:"kind"`
	CommunityID  cbigquery.NullString `bigquery:"community_id"`
	Tokens       int64                `bigquery:"tokens"`
	Failures     int64                `bigquery:"failures"`
	InvalidCount int64                `bigquery:"invalid_tokens"`
	Payload      cbigquery.NullJSON   `bigquery:"payload"`
	DeliveredAt  time.Time            `bigquery:"delivered_at"`
}

// DeliverySchema is the BigQuery schema matching DeliveryRow.
func DeliverySchema() (cbigquery.Schema, error) {
	schema, err := cbigquery.InferSchema(DeliveryRow{})
	if err != nil {
		return nil, fmt.Errorf("infer delivery schema: %w", err)
	}
	return schema, nil
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// BigQueryMirror copies delivery records into the analytics dataset.
type BigQueryMirror struct {
	client tableInserter
	table  string
	retry  RetryPolicy
}

// NewBigQueryMirror builds a mirror writing to table through client.
func NewBigQueryMirror(client tableInserter, table string, retry RetryPolicy) (*BigQueryMirror, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("deliveries table is required")
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = max(defaultMaximumBackoff, retry.InitialBackoff)
	}
	return &BigQueryMirror{client: client, table: table, retry: retry}, nil
}

// Insert writes a single row, retrying transient BigQuery failures.
func (m *BigQueryMirror) Insert(ctx context.Context, row DeliveryRow) error {
	rows := []any{&row}
	backoff := m.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.client.InsertRows(ctx, m.table, rows)
		if err == nil {
			return nil
		}
		if attempt >= m.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows: %w", m.table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, m.retry.MaximumBackoff)
	}
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
				return true
			}
		}
	}
	return false
}
