package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mcdev12/faceoff/internal/bracket"
	"github.com/mcdev12/faceoff/internal/tournament"
)

const (
	stateBucket    = "tournament:state"
	entrantsBucket = "tournament:entrants"

	stateKey = "current"
)

// BoltStore is an embedded bbolt implementation of the persistence port,
// interchangeable with MemoryStore behind the same interface. Values are
// JSON.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file and its buckets.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{stateBucket, entrantsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ tournament.Store = (*BoltStore)(nil)

func (s *BoltStore) GetState() (*tournament.State, error) {
	var state *tournament.State
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(stateBucket)).Get([]byte(stateKey))
		if raw == nil {
			return nil
		}
		state = &tournament.State{}
		return json.Unmarshal(raw, state)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return state, nil
}

func (s *BoltStore) SetState(state *tournament.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put([]byte(stateKey), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

func (s *BoltStore) ClearState() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Delete([]byte(stateKey))
	})
	if err != nil {
		return fmt.Errorf("failed to clear state: %w", err)
	}
	return nil
}

func (s *BoltStore) ListEntrants() ([]bracket.Entrant, error) {
	var out []bracket.Entrant
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entrantsBucket)).ForEach(func(_, v []byte) error {
			var e bracket.Entrant
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entrants: %w", err)
	}
	return out, nil
}

func (s *BoltStore) AddEntrant(e bracket.Entrant) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entrant: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entrantsBucket)).Put([]byte(e.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to write entrant: %w", err)
	}
	return nil
}

func (s *BoltStore) RemoveEntrant(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entrantsBucket)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove entrant: %w", err)
	}
	return nil
}
