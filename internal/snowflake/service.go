// Package snowflake provides the SQL-executing connection used for
// precondition queries, table seeding and reconciliation.
package snowflake

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"snowstream/internal/config"
	"snowstream/pkg/errors"
	"snowstream/pkg/models"
)

// Service wraps a pooled database connection against one warehouse profile.
type Service struct {
	db        *sql.DB
	profile   config.Profile
	timeout   time.Duration
	connected bool
}

// NewService creates a service for the given connection profile.
func NewService(profile config.Profile) *Service {
	return &Service{
		profile: profile,
		timeout: 30 * time.Second,
	}
}

// Connect establishes the connection using key-pair (JWT) authentication.
// Transient connection failures are retried; authentication failures are
// surfaced immediately.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	key, err := parsePrivateKey(s.profile.PrivateKey)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid,
			"profile private_key is not a valid PKCS#8 RSA key")
	}

	cfg := &gosnowflake.Config{
		Account:       s.profile.Account,
		User:          s.profile.User,
		Database:      s.profile.Database,
		Schema:        s.profile.Schema,
		Warehouse:     s.profile.Warehouse,
		Role:          s.profile.Role,
		Authenticator: gosnowflake.AuthTypeJwt,
		PrivateKey:    key,
	}

	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to build DSN")
	}

	retryCfg := &errors.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Strategy:     errors.BackoffExponential,
		RetryableError: func(err error) bool {
			return errors.GetErrorCode(err) == errors.ErrCodeConnectionFailed
		},
	}

	return errors.Retry(ctx, retryCfg, func(ctx context.Context) error {
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConnectionFailed,
				"failed to open connection").
				WithContext("account", s.profile.Account)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			if strings.Contains(err.Error(), "authentication") ||
				strings.Contains(err.Error(), "JWT") {
				return errors.Wrap(err, errors.ErrCodeAuthenticationFailed,
					"authentication failed").
					WithContext("user", s.profile.User)
			}
			return errors.Wrap(err, errors.ErrCodeConnectionFailed,
				"failed to reach warehouse").
				WithContext("account", s.profile.Account)
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the pooled connection.
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for collaborators that run their own
// statements, such as the reconciliation engine.
func (s *Service) DB() *sql.DB {
	return s.db
}

// QueryMaxCustomerID returns the highest customer id in the source-of-truth
// customer table. An empty table is a hard precondition fault: there is
// nothing to assign orders to, so ingestion must not start.
func (s *Service) QueryMaxCustomerID(ctx context.Context) (int, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeConnectionFailed, "not connected")
	}

	query := fmt.Sprintf(
		"SELECT MAX(customer_id) FROM %s.RAW.CUSTOMERS", s.profile.Database)

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(queryCtx, query).Scan(&maxID); err != nil {
		return 0, errors.SQLError("failed to query max customer id", query, err)
	}

	if !maxID.Valid || maxID.Int64 <= 0 {
		return 0, errors.PreconditionError(
			"no customers found; seed the CUSTOMERS table before streaming orders")
	}

	return int(maxID.Int64), nil
}

// InsertCustomers bulk-inserts customer rows into the CUSTOMERS table.
func (s *Service) InsertCustomers(ctx context.Context, customers []models.Customer) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "not connected")
	}
	if len(customers) == 0 {
		return nil
	}

	cols := []string{
		"customer_id", "first_name", "last_name", "email", "phone",
		"address", "city", "state", "zip_code", "registration_date",
		"customer_segment",
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s.RAW.CUSTOMERS (%s) VALUES ",
		s.profile.Database, strings.Join(cols, ", "))

	args := make([]interface{}, 0, len(customers)*len(cols))
	for i, c := range customers {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		row := c.Row()
		for _, col := range cols {
			args = append(args, row[col])
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(execCtx, b.String(), args...); err != nil {
		return errors.SQLError("failed to insert customers", b.String(), err)
	}
	return nil
}

// parsePrivateKey decodes an unencrypted PKCS#8 PEM private key.
func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected RSA", parsed)
	}
	return key, nil
}
