package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// WalletRow is the registry entry of one wallet. It never holds secrets.
type WalletRow struct {
	Name           string
	SS58Address    string
	PublicKey      string
	Scheme         string
	EncryptionType string
	CreatedAt      string
	UpdatedAt      string
}

// UpsertWallet inserts a wallet or refreshes the public fields of an existing one.
func UpsertWallet(d *DB, w WalletRow) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}

	_, err := d.sql.Exec(
		`INSERT INTO wallets (name, ss58_address, public_key, scheme, encryption_type)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			ss58_address    = excluded.ss58_address,
			public_key      = excluded.public_key,
			scheme          = excluded.scheme,
			encryption_type = excluded.encryption_type,
			updated_at      = CURRENT_TIMESTAMP`,
		w.Name, w.SS58Address, w.PublicKey, w.Scheme, w.EncryptionType,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet: %w", err)
	}
	return nil
}

const selectWallet = `SELECT name, ss58_address, public_key, scheme, encryption_type, created_at, updated_at FROM wallets`

type scanner interface {
	Scan(dest ...any) error
}

func scanWallet(s scanner) (WalletRow, error) {
	var w WalletRow
	err := s.Scan(
		&w.Name,
		&w.SS58Address,
		&w.PublicKey,
		&w.Scheme,
		&w.EncryptionType,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}

// GetWallet returns the wallet called name, or sql.ErrNoRows.
func GetWallet(d *DB, name string) (*WalletRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}

	w, err := scanWallet(d.sql.QueryRow(selectWallet+` WHERE name = ?`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select wallet: %w", err)
	}
	return &w, nil
}

// ListWallets returns every registered wallet ordered by name.
func ListWallets(d *DB) ([]WalletRow, error) {
	if d == nil || d.sql == nil {
		return nil, fmt.Errorf("database handle is nil")
	}

	rows, err := d.sql.Query(selectWallet + ` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	defer rows.Close()

	var results []WalletRow
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		results = append(results, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}

	return results, nil
}

// DeleteWallet removes the wallet called name.
// It returns sql.ErrNoRows if nothing was deleted.
func DeleteWallet(d *DB, name string) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}

	res, err := d.sql.Exec(`DELETE FROM wallets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
