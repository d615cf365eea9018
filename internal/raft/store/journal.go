package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"replicated-kv/internal/raft/rpc"

	"go.etcd.io/bbolt"
	pb "google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var operationsBucket = []byte("operations")

// BboltJournal writes applied operations to a bbolt file, keyed by the order in which they were applied. The file
// is recreated when the journal is opened: it is an inspection aid for a single process lifetime, not a recovery
// mechanism.
type BboltJournal struct {
	conn *bbolt.DB
}

// OpenBboltJournal truncates any journal left at path and opens a fresh one.
func OpenBboltJournal(path string) (*BboltJournal, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove old journal: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(operationsBucket); err != nil {
			return fmt.Errorf("failed to create operations bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BboltJournal{conn: db}, nil
}

// Append stores op under the next sequence number of the bucket.
func (j *BboltJournal) Append(op *rpc.Operation) error {
	data, err := encodeOperation(op)
	if err != nil {
		return err
	}

	return j.conn.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(operationsBucket)
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate journal sequence: %w", err)
		}
		return bucket.Put(uint64ToBytes(seq), data)
	})
}

// ReadAll returns every journaled operation in append order.
func (j *BboltJournal) ReadAll() ([]*rpc.Operation, error) {
	var ops []*rpc.Operation
	err := j.conn.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(operationsBucket).ForEach(func(k, v []byte) error {
			op, err := decodeOperation(v)
			if err != nil {
				return fmt.Errorf("failed to decode journal entry %d: %w", bytesToUint64(k), err)
			}
			ops = append(ops, op)
			return nil
		})
	})
	return ops, err
}

// Close closes the underlying database.
func (j *BboltJournal) Close() error {
	return j.conn.Close()
}

// Operations are stored as protobuf-encoded structpb.Struct records
func encodeOperation(op *rpc.Operation) ([]byte, error) {
	record, err := structpb.NewStruct(map[string]any{
		"id":        op.ID,
		"type":      string(op.Type),
		"key":       op.Key,
		"value":     op.Value,
		"timestamp": op.Timestamp,
		"nodeId":    op.OriginNodeID,
		"term":      op.Term,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build journal record: %w", err)
	}

	data, err := pb.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journal record: %w", err)
	}
	return data, nil
}

func decodeOperation(data []byte) (*rpc.Operation, error) {
	record := &structpb.Struct{}
	if err := pb.Unmarshal(data, record); err != nil {
		return nil, err
	}

	f := record.GetFields()
	return &rpc.Operation{
		ID:           f["id"].GetStringValue(),
		Type:         rpc.OperationType(f["type"].GetStringValue()),
		Key:          f["key"].GetStringValue(),
		Value:        f["value"].GetStringValue(),
		Timestamp:    int64(f["timestamp"].GetNumberValue()),
		OriginNodeID: f["nodeId"].GetStringValue(),
		Term:         uint64(f["term"].GetNumberValue()),
	}, nil
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func bytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
