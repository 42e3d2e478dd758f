package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/vaulton/vaulton/storage"
)

const (
	// defaultPingTimeout bounds the initial connection verification
	defaultPingTimeout = 5 * time.Second

	// requestIDLogLength is the number of characters to include when logging request IDs
	requestIDLogLength = 8

	// mysqlErrDuplicateEntry is the MySQL error number for a unique key violation
	mysqlErrDuplicateEntry = 1062
)

// Config holds configuration for the MySQL storage backend.
type Config struct {
	// Host is the MySQL server hostname (required)
	Host string

	// Port is the MySQL server port (default 3306)
	Port int

	// User is the MySQL user name (required)
	User string

	// Password is the MySQL password
	Password string

	// Database is the schema name (required)
	Database string

	// MaxOpenConns limits the connection pool size (0 means unlimited)
	MaxOpenConns int

	// MaxIdleConns sets the idle connection count (negative means none)
	MaxIdleConns int

	// ConnMaxLifetime bounds connection reuse (0 means unlimited)
	ConnMaxLifetime time.Duration

	// PingTimeout bounds the initial connection check (default 5s)
	PingTimeout time.Duration

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a MySQL-backed implementation of the storage interfaces.
// It implements ClientStore and AuthRequestStore. Unlike the Valkey
// backend there is no server-side TTL, so expired authorization
// requests are filtered on read and cleaned up opportunistically.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time interface checks
var (
	_ storage.ClientStore      = (*Store)(nil)
	_ storage.AuthRequestStore = (*Store)(nil)
)

// New creates a new MySQL-backed storage instance and verifies the
// connection. Call Migrate before first use to create the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mysql host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("mysql user is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mysql database is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("mysql", buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	logger.Info("Connected to MySQL storage",
		"host", cfg.Host,
		"database", cfg.Database)

	return &Store{db: db, logger: logger}, nil
}

// buildDSN builds a MySQL DSN from the config using the driver's own
// config type so special characters in credentials are escaped.
func buildDSN(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mysqlCfg := mysql.NewConfig()
	mysqlCfg.User = cfg.User
	mysqlCfg.Passwd = cfg.Password
	mysqlCfg.Net = "tcp"
	mysqlCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	mysqlCfg.DBName = cfg.Database
	mysqlCfg.ParseTime = true
	mysqlCfg.AllowNativePasswords = true
	mysqlCfg.Params = map[string]string{
		"multiStatements": "true",
		"charset":         "utf8mb4",
	}

	return mysqlCfg.FormatDSN()
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	err := s.db.Close()
	s.logger.Info("MySQL storage connection closed")
	return err
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Migrate creates the storage schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS oauth_client (
	client_id          VARCHAR(255) NOT NULL PRIMARY KEY,
	client_secret_hash VARCHAR(255) NOT NULL DEFAULT '',
	client_type        VARCHAR(32)  NOT NULL,
	client_name        VARCHAR(255) NOT NULL DEFAULT '',
	redirect_uris      JSON         NOT NULL,
	scopes             JSON         NOT NULL,
	created_at         TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS auth_request (
	request_id            CHAR(32)     NOT NULL PRIMARY KEY,
	client_id             VARCHAR(255) NOT NULL,
	redirect_uri          VARCHAR(2048) NOT NULL,
	scope                 VARCHAR(1024) NOT NULL,
	state                 VARCHAR(1024) NOT NULL DEFAULT '',
	code_challenge        VARCHAR(255) NOT NULL DEFAULT '',
	code_challenge_method VARCHAR(16)  NOT NULL DEFAULT '',
	created_at            TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at            TIMESTAMP    NOT NULL,
	KEY idx_auth_request_expires_at (expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	s.logger.Info("MySQL schema migrated")
	return nil
}

// DeleteExpiredRequests removes authorization requests whose expiry has
// passed. Intended to be called periodically by the operator or a cron
// job; reads already treat expired rows as absent.
func (s *Store) DeleteExpiredRequests(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_request WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired requests: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		s.logger.Debug("Deleted expired authorization requests", "count", deleted)
	}
	return deleted, nil
}

// isDuplicateEntry reports whether err is a MySQL unique key violation.
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
