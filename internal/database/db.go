package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSN builds the MySQL data source name used by Open.
//
// clientFoundRows=true makes RowsAffected report matched rows instead of
// changed rows.  The seat map relies on it: re-holding a seat already
// held by the same holder with the same expiry changes nothing but must
// still count as a match.
func DSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// schema creates the tables owned by the checkout core.  shows and users
// belong to the catalog and identity services; they are created here only
// when missing so a fresh database can run the service on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shows (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		movie_id         VARCHAR(64)  NOT NULL,
		movie_title      VARCHAR(255) NOT NULL,
		starts_at        DATETIME     NOT NULL,
		base_price_minor BIGINT       NOT NULL,
		status           VARCHAR(16)  NOT NULL DEFAULT 'SCHEDULED',
		KEY idx_shows_starts_at (starts_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email            VARCHAR(255) NOT NULL UNIQUE,
		membership_type  VARCHAR(16)  NULL,
		membership_start DATETIME     NULL,
		membership_end   DATETIME     NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS show_seats (
		show_id         BIGINT UNSIGNED NOT NULL,
		seat_label      VARCHAR(8)   NOT NULL,
		state           VARCHAR(16)  NOT NULL DEFAULT 'FREE',
		holder          VARCHAR(64)  NULL,
		hold_expires_at DATETIME(3)  NULL,
		booking_ref     VARCHAR(64)  NULL,
		PRIMARY KEY (show_id, seat_label),
		KEY idx_show_seats_hold (state, hold_expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		ref          VARCHAR(64)  NOT NULL,
		user_id      BIGINT UNSIGNED NOT NULL,
		show_id      BIGINT UNSIGNED NOT NULL,
		seats        JSON         NOT NULL,
		amount_minor BIGINT       NOT NULL,
		currency     CHAR(3)      NOT NULL,
		paid         BOOLEAN      NOT NULL DEFAULT TRUE,
		order_id     VARCHAR(64)  NOT NULL,
		payment_id   VARCHAR(64)  NOT NULL,
		created_at   DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_bookings_ref (ref),
		UNIQUE KEY uq_bookings_payment (payment_id),
		KEY idx_bookings_user (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id BIGINT UNSIGNED NOT NULL,
		show_id    BIGINT UNSIGNED NOT NULL,
		seat_label VARCHAR(8) NOT NULL,
		UNIQUE KEY uq_booking_seats_seat (show_id, seat_label),
		KEY idx_booking_seats_booking (booking_id),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS unfulfilled_payments (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id      BIGINT UNSIGNED NOT NULL,
		show_id      BIGINT UNSIGNED NOT NULL,
		seats        JSON         NOT NULL,
		amount_minor BIGINT       NOT NULL,
		currency     CHAR(3)      NOT NULL,
		order_id     VARCHAR(64)  NOT NULL,
		payment_id   VARCHAR(64)  NOT NULL,
		reason       VARCHAR(255) NOT NULL,
		created_at   DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_unfulfilled_payment (payment_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
