package store

import (
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	ds "github.com/ipfs/go-datastore"
	badger3 "github.com/ipfs/go-ds-badger3"
)

// NewDefaultKVStore opens a badger backed datastore at rootDir/dbPath/dbName.
// Relative dbPath values are resolved against rootDir.
func NewDefaultKVStore(rootDir, dbPath, dbName string) (ds.Batching, error) {
	path := filepath.Join(rootify(rootDir, dbPath), dbName)
	return badger3.NewDatastore(path, &badger3.DefaultOptions)
}

// NewDefaultInMemoryKVStore builds a badger datastore that never touches disk.
func NewDefaultInMemoryKVStore() (ds.Batching, error) {
	inMemoryOptions := &badger3.Options{
		GcDiscardRatio: 0.2,
		GcInterval:     15 * time.Minute,
		GcSleep:        10 * time.Second,
		Options:        badger.DefaultOptions("").WithInMemory(true),
	}
	return badger3.NewDatastore("", inMemoryOptions)
}

func rootify(rootDir, dbPath string) string {
	if filepath.IsAbs(dbPath) {
		return dbPath
	}
	return filepath.Join(rootDir, dbPath)
}
