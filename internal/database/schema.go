package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the service uses.  Statements are idempotent
// so Migrate can run on each start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('CUSTOMER','STAFF') NOT NULL DEFAULT 'CUSTOMER',
		is_active     TINYINT(1) NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS restaurant_tables (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		label      VARCHAR(64) NOT NULL,
		capacity   INT UNSIGNED NOT NULL,
		is_active  TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_tables_label (label),
		KEY idx_tables_capacity (is_active, capacity)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reference        CHAR(36) NOT NULL,
		table_id         BIGINT UNSIGNED NOT NULL,
		user_id          BIGINT UNSIGNED NOT NULL,
		reservation_date DATE NOT NULL,
		starts_at        DATETIME NOT NULL,
		ends_at          DATETIME NOT NULL,
		party_size       INT UNSIGNED NOT NULL,
		status           ENUM('PENDING','CONFIRMED','CANCELLED') NOT NULL,
		contact_name     VARCHAR(120) NOT NULL,
		contact_phone    VARCHAR(40) NOT NULL,
		contact_email    VARCHAR(255) NULL,
		notes            VARCHAR(500) NULL,
		hold_expires_at  DATETIME NULL,
		payment_ref      VARCHAR(128) NULL,
		created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservations_reference (reference),
		KEY idx_reservations_table_date (table_id, reservation_date, starts_at),
		KEY idx_reservations_date (reservation_date, status),
		KEY idx_reservations_user (user_id, starts_at),
		KEY idx_reservations_hold (status, hold_expires_at),
		CONSTRAINT fk_reservations_table FOREIGN KEY (table_id) REFERENCES restaurant_tables (id) ON DELETE RESTRICT,
		CONSTRAINT fk_reservations_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE RESTRICT,
		CONSTRAINT chk_reservations_window CHECK (ends_at > starts_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS opening_hours (
		weekday    TINYINT UNSIGNED NOT NULL PRIMARY KEY,
		open_time  TIME NOT NULL,
		close_time TIME NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS holidays (
		holiday_date DATE NOT NULL PRIMARY KEY,
		closed       TINYINT(1) NOT NULL DEFAULT 1,
		open_time    TIME NULL,
		close_time   TIME NULL,
		note         VARCHAR(255) NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
