// Package storage persists users and items in a SQL database. The same
// queries run on Postgres and SQLite; driver differences are carried by a
// Dialect supplied by the postgres and sqlite subpackages.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
)

// Dialect describes what differs between the supported SQL drivers.
type Dialect struct {
	Name string
	// ForUpdate is appended to row reads made inside a transaction.
	ForUpdate string
	// Rebind rewrites $N placeholders into the driver's syntax.
	Rebind func(query string) string
	// UniqueViolation returns the violated constraint description.
	UniqueViolation func(err error) (string, bool)
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Rebind == nil {
		dialect.Rebind = func(q string) string { return q }
	}
	if dialect.UniqueViolation == nil {
		dialect.UniqueViolation = func(error) (string, bool) { return "", false }
	}
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Dialect() string {
	return s.dialect.Name
}

// Rebind rewrites a query written with $N placeholders for the store's driver.
func (s *Store) Rebind(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) Stop() error {
	return s.db.Close()
}

const (
	userColumns = "id, username, email_address, password_hash, budget"
	itemColumns = "id, name, price, barcode, description, owner_id"
)

// SaveUser inserts a user with the default budget. Duplicate usernames and
// emails are reported as models.ErrDuplicateUsername and
// models.ErrDuplicateEmail.
func (s *Store) SaveUser(ctx context.Context, username, email string, passHash []byte) (*models.User, error) {
	const op = "storage.SaveUser"

	var user *models.User
	err := s.WithTx(ctx, func(tx *Tx) error {
		if taken, err := tx.exists(ctx, "SELECT 1 FROM users WHERE username = $1", username); err != nil {
			return err
		} else if taken {
			return models.ErrDuplicateUsername
		}
		if taken, err := tx.exists(ctx, "SELECT 1 FROM users WHERE email_address = $1", email); err != nil {
			return err
		} else if taken {
			return models.ErrDuplicateEmail
		}

		u := models.User{Username: username, Email: email, PasswordHash: string(passHash)}
		var budget int64
		err := tx.tx.QueryRowContext(ctx, s.dialect.Rebind(
			"INSERT INTO users (username, email_address, password_hash) VALUES ($1, $2, $3) RETURNING id, budget"),
			username, email, string(passHash),
		).Scan(&u.ID, &budget)
		if err != nil {
			return err
		}
		u.Budget = models.Money(budget)
		user = &u
		return nil
	})
	if err != nil {
		if constraint, ok := s.dialect.UniqueViolation(err); ok {
			err = duplicateUserError(constraint)
		}
		if errors.Is(err, models.ErrDuplicateUsername) || errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func duplicateUserError(constraint string) error {
	if strings.Contains(constraint, "email") {
		return models.ErrDuplicateEmail
	}
	return models.ErrDuplicateUsername
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"

	user, err := scanUser(s.db.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT "+userColumns+" FROM users WHERE id = $1"), id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// GetUserByIdentifier finds a user whose username or email equals identifier.
func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	const op = "storage.GetUserByIdentifier"

	user, err := scanUser(s.db.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT "+userColumns+" FROM users WHERE username = $1 OR email_address = $1 ORDER BY id LIMIT 1"),
		identifier))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// AvailableItems lists items without an owner.
func (s *Store) AvailableItems(ctx context.Context) ([]models.Item, error) {
	const op = "storage.AvailableItems"

	items, err := s.queryItems(ctx, "SELECT "+itemColumns+" FROM items WHERE owner_id IS NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func (s *Store) ItemsOwnedBy(ctx context.Context, userID int64) ([]models.Item, error) {
	const op = "storage.ItemsOwnedBy"

	items, err := s.queryItems(ctx, "SELECT "+itemColumns+" FROM items WHERE owner_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func (s *Store) GetItemByName(ctx context.Context, name string) (*models.Item, error) {
	const op = "storage.GetItemByName"

	item, err := scanItem(s.db.QueryRowContext(ctx,
		s.dialect.Rebind("SELECT "+itemColumns+" FROM items WHERE name = $1"), name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WithTx: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("storage.WithTx: rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&Tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("storage.WithTx: commit: %w", err)
	}
	return nil
}

// Tx exposes the ledger and registry mutations that must happen atomically.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// User reads a user and, where the driver supports it, locks the row until
// the transaction ends.
func (t *Tx) User(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.Tx.User"

	user, err := scanUser(t.tx.QueryRowContext(ctx,
		t.dialect.Rebind("SELECT "+userColumns+" FROM users WHERE id = $1"+t.dialect.ForUpdate), id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// Item reads an item and, where the driver supports it, locks the row until
// the transaction ends.
func (t *Tx) Item(ctx context.Context, id int64) (*models.Item, error) {
	const op = "storage.Tx.Item"

	item, err := scanItem(t.tx.QueryRowContext(ctx,
		t.dialect.Rebind("SELECT "+itemColumns+" FROM items WHERE id = $1"+t.dialect.ForUpdate), id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

func (t *Tx) Credit(ctx context.Context, userID int64, amount models.Money) error {
	const op = "storage.Tx.Credit"

	if amount <= 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	res, err := t.tx.ExecContext(ctx,
		t.dialect.Rebind("UPDATE users SET budget = budget + $1 WHERE id = $2"), int64(amount), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

// Debit never takes a budget below zero; it fails with
// models.ErrInsufficientFunds instead.
func (t *Tx) Debit(ctx context.Context, userID int64, amount models.Money) error {
	const op = "storage.Tx.Debit"

	if amount <= 0 {
		return fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}
	res, err := t.tx.ExecContext(ctx,
		t.dialect.Rebind("UPDATE users SET budget = budget - $1 WHERE id = $2 AND budget >= $1"), int64(amount), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return nil
	}

	found, err := t.exists(ctx, "SELECT 1 FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, models.ErrInsufficientFunds)
}

// TransferOwnership sets the item's owner without checking the previous one.
// A nil owner returns the item to the market.
func (t *Tx) TransferOwnership(ctx context.Context, itemID int64, owner *int64) error {
	const op = "storage.Tx.TransferOwnership"

	var ownerID sql.NullInt64
	if owner != nil {
		ownerID = sql.NullInt64{Int64: *owner, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx,
		t.dialect.Rebind("UPDATE items SET owner_id = $1 WHERE id = $2"), ownerID, itemID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrItemNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user   models.User
		budget int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &budget)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Budget = models.Money(budget)
	return &user, nil
}

func scanItem(row scanner) (*models.Item, error) {
	var (
		item  models.Item
		price int64
		owner sql.NullInt64
	)
	err := row.Scan(&item.ID, &item.Name, &price, &item.Barcode, &item.Description, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Price = models.Money(price)
	if owner.Valid {
		id := owner.Int64
		item.Owner = &id
	}
	return &item, nil
}
