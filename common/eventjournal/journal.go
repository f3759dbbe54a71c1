// Package eventjournal persists file system change events to an on-disk
// BadgerDB so they survive process restarts and can be replayed in order.
// Entries are keyed by the event sequence ID encoded big-endian, which keeps
// Badger's byte-wise key order identical to event order.
package eventjournal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/driftfs/drift-go/common/logger"
	"github.com/driftfs/drift-go/common/watch"
	"go.uber.org/zap"
)

// Journal is an append-only store of watch events. No additional locking is
// implemented around the database, as Badger already provides transactional
// guarantees.
type Journal struct {
	db *badger.DB
}

// Open creates or reopens a journal at path. The caller must Close() it.
func Open(path string, log *zap.Logger) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts = opts.WithLogger(logger.NewBadgerLoggerBridge("eventJournal", log))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("unable to open event journal at %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Append stores an event under its sequence ID. Appending the same sequence ID
// twice overwrites the earlier entry.
func (j *Journal) Append(event *watch.Event) error {
	encoded, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("error encoding event %d: %w", event.SeqID, err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seqKey(event.SeqID), encoded)
	})
}

// Replay calls fn for every journaled event in sequence order. Returning an
// error from fn stops the replay and is returned as is.
func (j *Journal) Replay(fn func(*watch.Event) error) error {
	return j.ReplayFrom(0, fn)
}

// ReplayFrom is Replay starting at the first event with a sequence ID greater
// than or equal to seqID.
func (j *Journal) ReplayFrom(seqID uint64, fn func(*watch.Event) error) error {
	return j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(seqKey(seqID)); it.Valid(); it.Next() {
			var event *watch.Event
			err := it.Item().Value(func(encoded []byte) error {
				var decodeErr error
				event, decodeErr = decodeEvent(encoded)
				return decodeErr
			})
			if err != nil {
				return fmt.Errorf("error decoding journal entry %d: %w", seqFromKey(it.Item().Key()), err)
			}
			if err := fn(event); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrimUntil deletes all events with a sequence ID up to and including seqID.
func (j *Journal) TrimUntil(seqID uint64) error {
	// Collect keys under a read transaction first, Badger does not allow
	// deleting from an open iterator's transaction.
	var keys [][]byte
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if seqFromKey(key) > seqID {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := j.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

// LastSeqID returns the newest journaled sequence ID, or 0 when the journal is
// empty.
func (j *Journal) LastSeqID() (uint64, error) {
	var last uint64
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		it.Seek(seqKey(^uint64(0)))
		if it.Valid() {
			last = seqFromKey(it.Item().Key())
		}
		return nil
	})
	return last, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func seqKey(seqID uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seqID)
	return key
}

func seqFromKey(key []byte) uint64 {
	if len(key) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key)
}

func encodeEvent(event *watch.Event) ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(event); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func decodeEvent(encoded []byte) (*watch.Event, error) {
	event := &watch.Event{}
	if err := gob.NewDecoder(bytes.NewReader(encoded)).Decode(event); err != nil {
		return nil, err
	}
	if event.SeqID == 0 && event.Path == "" {
		return nil, errors.New("decoded an empty event")
	}
	return event, nil
}
