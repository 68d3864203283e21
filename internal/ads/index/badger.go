package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/ads"
	apperrors "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/errors"
)

const sequenceBandwidth = 100

// Badger stores one key per (keyword, ad id) insertion:
//
//	<prefix><keyword>\x00<8-byte big-endian sequence>  ->  "<ad id>"
//
// The sequence is global and monotonic, so a prefix scan returns a
// keyword's ids in insertion order, duplicates included.
type Badger struct {
	db     *badger.DB
	prefix string
	seq    *badger.Sequence
}

var _ ads.IndexStore = (*Badger)(nil)

// NewBadger leases a sequence from db. Close releases it; db itself stays
// owned by the caller.
func NewBadger(db *badger.DB, keyPrefix string) (*Badger, error) {
	seq, err := db.GetSequence([]byte("\x00seq:"+keyPrefix), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("leasing index sequence: %w", err)
	}
	return &Badger{db: db, prefix: keyPrefix, seq: seq}, nil
}

func (b *Badger) Open(ctx context.Context) (ads.IndexSession, error) {
	if b.db.IsClosed() {
		return nil, apperrors.Unavailable("badger", badger.ErrDBClosed)
	}
	return &badgerSession{store: b}, nil
}

// Close returns unused sequence numbers.
func (b *Badger) Close() error {
	return b.seq.Release()
}

func (b *Badger) keywordPrefix(keyword string) []byte {
	return append([]byte(b.prefix+keyword), 0)
}

type badgerSession struct {
	store *Badger
}

func (s *badgerSession) Put(ctx context.Context, keyword string, adID int64) error {
	n, err := s.store.seq.Next()
	if err != nil {
		return fmt.Errorf("next index sequence: %w", err)
	}
	key := binary.BigEndian.AppendUint64(s.store.keywordPrefix(keyword), n)
	err = s.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(strconv.FormatInt(adID, 10)))
	})
	if err != nil {
		return fmt.Errorf("indexing %q -> %d: %w", keyword, adID, err)
	}
	return nil
}

func (s *badgerSession) Get(ctx context.Context, keyword string) ([]string, error) {
	ids := []string{}
	if keyword == "" {
		return ids, nil
	}
	prefix := s.store.keywordPrefix(keyword)
	err := s.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			ids = append(ids, string(value))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading keyword %q: %w", keyword, err)
	}
	return ids, nil
}

func (s *badgerSession) Close() error { return nil }
