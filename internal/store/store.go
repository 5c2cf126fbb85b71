// Package store is the durable ledger: tracked accounts, lots, disposal
// history, pending operations, and configuration, kept in a Badger database.
// Badger holds an exclusive lock on the data directory for the life of the
// process, so two instances can never mutate the same ledger concurrently.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dgraph-io/badger"
)

var (
	// ErrNotFound means the requested account, lot, or pending record is
	// absent.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means an account with the same (address, asset) key
	// is already tracked.
	ErrAlreadyExists = errors.New("already exists")
	// ErrLotDisposed means the lot appears in disposal history, which is
	// immutable and may not be deleted out from under it.
	ErrLotDisposed = errors.New("lot already disposed")
	// ErrAccountNotEmpty means the account still holds lots and removal
	// was not forced.
	ErrAccountNotEmpty = errors.New("account still holds lots")
)

// Store is the ledger's durable keyed storage. All mutating methods run in a
// single Badger transaction: a mutation either fully applies or leaves the
// store unchanged.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) the ledger at dir and acquires its
// exclusive directory lock.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating ledger dir %q: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir)
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening ledger at %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database and its directory lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// getJSON reads and decodes one keyed record. Missing keys map to
// ErrNotFound.
func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return fmt.Errorf("decoding %s: %w", key, err)
		}
		return nil
	})
}

func unmarshalValue(val []byte, v any) error {
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// nextCounter increments and persists the counter stored at key, returning
// the new value. Counters start at 1 and never repeat, even across process
// restarts, because the increment commits with the mutation that consumed it.
func nextCounter(txn *badger.Txn, key []byte) (uint64, error) {
	var current uint64
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return 0, fmt.Errorf("reading counter %s: %w", key, err)
	default:
		if err := item.Value(func(val []byte) error {
			current, err = strconv.ParseUint(string(val), 10, 64)
			return err
		}); err != nil {
			return 0, fmt.Errorf("decoding counter %s: %w", key, err)
		}
	}

	next := current + 1
	if err := txn.Set(key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, fmt.Errorf("writing counter %s: %w", key, err)
	}
	return next, nil
}

// listPrefix decodes every record under prefix into out via the collect
// callback.
func listPrefix(txn *badger.Txn, prefix []byte, collect func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(collect); err != nil {
			return err
		}
	}
	return nil
}
