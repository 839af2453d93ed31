package state

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"stakefarm/storage"
)

// Manager reads and writes module state on top of a key/value database.
// Mutations made inside Atomic are journaled and flushed in a single batch
// once the callback succeeds. Accessors called outside Atomic or View write
// straight through and are not safe for concurrent use. Transactions do not
// nest: callbacks must use the accessors directly.
type Manager struct {
	mu       sync.Mutex
	db       storage.Database
	pending  map[string][]byte
	listener CommitListener
}

// CommitListener observes the outcome of every transaction. Both methods run
// while the transaction lock is still held.
type CommitListener interface {
	Commit()
	Reset()
}

// NewManager creates a state manager backed by db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// SetCommitListener registers l to be told whether each transaction
// committed. Views always report Reset.
func (m *Manager) SetCommitListener(l CommitListener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

// Atomic runs fn as one transaction. Writes performed by fn become visible
// only when it returns nil; on error they are discarded.
func (m *Manager) Atomic(fn func() error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	m.begin()
	defer m.end()
	if err := fn(); err != nil {
		m.notify(false)
		return err
	}
	if len(m.pending) > 0 {
		if err := m.db.Write(m.pending); err != nil {
			m.notify(false)
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	m.notify(true)
	return nil
}

// View runs fn against committed state. Writes made by fn are visible to fn
// itself and dropped afterwards.
func (m *Manager) View(fn func() error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("state: manager unavailable")
	}
	m.begin()
	defer m.end()
	defer m.notify(false)
	return fn()
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.pending = make(map[string][]byte)
}

func (m *Manager) notify(committed bool) {
	if m.listener == nil {
		return
	}
	if committed {
		m.listener.Commit()
		return
	}
	m.listener.Reset()
}

func (m *Manager) end() {
	m.pending = nil
	m.mu.Unlock()
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if m.pending != nil {
		if value, ok := m.pending[string(key)]; ok {
			return value, nil
		}
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

func (m *Manager) put(key []byte, value []byte) error {
	if m.pending != nil {
		m.pending[string(key)] = append([]byte(nil), value...)
		return nil
	}
	return m.db.Put(key, value)
}

func (m *Manager) delete(key []byte) error {
	if m.pending != nil {
		m.pending[string(key)] = nil
		return nil
	}
	return m.db.Write(map[string][]byte{string(key): nil})
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so every namespace shares a uniform key
// width.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.delete(kvKey(key))
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
