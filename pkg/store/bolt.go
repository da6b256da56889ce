package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("wallet-vault")

// BoltStore 基于 bbolt 单文件数据库，是默认的持久化后端
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt 打开 (必要时创建) 数据文件。文件被其他进程持有时 1 秒后超时。
func OpenBolt(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, unavailable("mkdir", dir, err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, unavailable("open", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v 只在事务内有效
		out = append([]byte(nil), v...)
		return nil
	})
	if err == ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get", key, err)
	}
	return out, nil
}

func (s *BoltStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), value)
	})
	if err != nil {
		return unavailable("put", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
