//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a durable storage.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Register the sqlite3 driver for Open.
	_ "github.com/mattn/go-sqlite3"

	"trpc.group/trpc-go/trpc-agent-graph/storage"
)

// DriverName is the database/sql driver used by Open.
const DriverName = "sqlite3"

const (
	sqliteCreateRecords = "CREATE TABLE IF NOT EXISTS agentgraph_records (" +
		"kind TEXT NOT NULL, " +
		"id TEXT NOT NULL, " +
		"value_json BLOB NOT NULL, " +
		"updated_at INTEGER NOT NULL, " +
		"PRIMARY KEY (kind, id)" +
		")"

	sqliteUpsertRecord = "INSERT OR REPLACE INTO agentgraph_records (kind, id, value_json, updated_at) " +
		"VALUES (?, ?, ?, ?)"

	sqliteSelectRecord = "SELECT value_json FROM agentgraph_records WHERE kind = ? AND id = ? LIMIT 1"

	sqliteExistsRecord = "SELECT 1 FROM agentgraph_records WHERE kind = ? AND id = ? LIMIT 1"

	sqliteDeleteRecord = "DELETE FROM agentgraph_records WHERE kind = ? AND id = ?"
)

// Store is a SQLite-backed storage.Store. It expects an initialized *sql.DB
// and creates the required schema.
type Store struct {
	db     *sql.DB
	ownsDB bool
}

// NewStore creates a store on db. The caller keeps ownership of db and
// should limit it to one open connection when it is shared by writers.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateRecords); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens the database file at path and creates a store that owns it.
func Open(path string) (*Store, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// SQLite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, key storage.Key, value []byte) error {
	if value == nil {
		return storage.ErrNilValue
	}
	_, err := s.db.ExecContext(ctx, sqliteUpsertRecord,
		string(key.Kind), key.ID, value, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key storage.Key) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, sqliteSelectRecord, string(key.Kind), key.ID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return value, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, key storage.Key) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteRecord, string(key.Kind), key.ID); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Exists implements storage.Store.
func (s *Store) Exists(ctx context.Context, key storage.Key) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, sqliteExistsRecord, string(key.Kind), key.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return true, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
