// Package drafts persists unsent message drafts per conversation so a failed
// send survives restarting the chat client.
package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("drafts")

type Draft struct {
	Content string    `json:"content"`
	SavedAt time.Time `json:"savedAt"`
}

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create drafts dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func draftKey(userID, peerID string) ([]byte, error) {
	userID = strings.TrimSpace(userID)
	peerID = strings.TrimSpace(peerID)
	if userID == "" || peerID == "" {
		return nil, errors.New("draft key needs both user and peer id")
	}
	return []byte(userID + "\x00" + peerID), nil
}

// Save stores content for the conversation. Blank content deletes the draft.
func (s *Store) Save(userID, peerID, content string) error {
	if strings.TrimSpace(content) == "" {
		return s.Delete(userID, peerID)
	}
	key, err := draftKey(userID, peerID)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Draft{Content: content, SavedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, encoded)
	})
}

// Load returns the saved draft, or false when there is none.
func (s *Store) Load(userID, peerID string) (Draft, bool, error) {
	key, err := draftKey(userID, peerID)
	if err != nil {
		return Draft{}, false, err
	}
	var (
		draft Draft
		found bool
	)
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(key)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &draft); err != nil {
			// A corrupt entry reads as no draft.
			return nil
		}
		found = true
		return nil
	})
	return draft, found, err
}

func (s *Store) Delete(userID, peerID string) error {
	key, err := draftKey(userID, peerID)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}
