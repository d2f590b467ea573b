package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltAudioCache keeps synthesized audio in a BoltDB file so that repeated phrases are not sent to the
// speech provider again. Only audio is stored, keyed by a digest of the voice and the text.
type BoltAudioCache struct {
	db *bolt.DB
}

var audioBucket = []byte("audio")

// NewBoltAudioCache opens or creates the cache file at path. The file is created with 0600 permissions
// if it doesn't exist.
func NewBoltAudioCache(path string) (BoltAudioCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltAudioCache{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(audioBucket)
		return err
	})
	if err != nil {
		db.Close()
		return BoltAudioCache{}, fmt.Errorf("failed to create audio bucket: %w", err)
	}

	return BoltAudioCache{db: db}, nil
}

// AudioKey derives the cache key of text spoken with voice.
func AudioKey(voice, text string) string {
	sum := sha256.Sum256([]byte(voice + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Audio returns the cached audio stored under key. The second result is false on a miss.
func (b BoltAudioCache) Audio(_ context.Context, key string) ([]byte, bool, error) {
	var audio []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(audioBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// Values are only valid inside the transaction.
			audio = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, audio != nil, nil
}

// PutAudio stores audio under key, replacing any previous entry.
func (b BoltAudioCache) PutAudio(_ context.Context, key string, audio []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(audioBucket)
		if bucket == nil {
			return fmt.Errorf("audio bucket is missing")
		}
		return bucket.Put([]byte(key), audio)
	})
}

// Close closes the underlying database file.
func (b BoltAudioCache) Close() error {
	return b.db.Close()
}
