package whitelist

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stakefarm/core/events"
	"stakefarm/crypto"
)

var (
	ErrNotOwner    = errors.New("whitelist: caller is not the owner")
	ErrNilState    = errors.New("whitelist: state not configured")
	ErrOwnerNotSet = errors.New("whitelist: owner not configured")
)

type registryState interface {
	WhitelistRoot() (common.Hash, error)
	SetWhitelistRoot(root common.Hash) error
	WhitelistOwner() (crypto.Address, bool, error)
	SetWhitelistOwner(owner crypto.Address) error
}

// Registry persists the current allocation root and its owner.
type Registry struct {
	state   registryState
	emitter events.Emitter
}

// NewRegistry returns an unconfigured registry.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState wires the registry to the persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures where root updates are reported.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

// Initialize records owner and the initial root unless an owner already
// exists. It reports whether anything was written.
func (r *Registry) Initialize(owner crypto.Address, root common.Hash) (bool, error) {
	if r == nil || r.state == nil {
		return false, ErrNilState
	}
	_, ok, err := r.state.WhitelistOwner()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := r.state.SetWhitelistOwner(owner); err != nil {
		return false, err
	}
	if err := r.state.SetWhitelistRoot(root); err != nil {
		return false, err
	}
	return true, nil
}

// Owner returns the address allowed to replace the root.
func (r *Registry) Owner() (crypto.Address, error) {
	if r == nil || r.state == nil {
		return crypto.Address{}, ErrNilState
	}
	owner, ok, err := r.state.WhitelistOwner()
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, ErrOwnerNotSet
	}
	return owner, nil
}

// Root returns the current allocation root.
func (r *Registry) Root() (common.Hash, error) {
	if r == nil || r.state == nil {
		return common.Hash{}, ErrNilState
	}
	return r.state.WhitelistRoot()
}

// UpdateRoot replaces the allocation root. Only the owner may call it.
func (r *Registry) UpdateRoot(caller crypto.Address, root common.Hash) error {
	owner, err := r.Owner()
	if err != nil {
		return err
	}
	if !owner.Equal(caller) {
		return ErrNotOwner
	}
	previous, err := r.state.WhitelistRoot()
	if err != nil {
		return err
	}
	if err := r.state.SetWhitelistRoot(root); err != nil {
		return err
	}
	r.emitter.Emit(events.WhitelistRootUpdated{Caller: caller, OldRoot: previous, NewRoot: root})
	return nil
}

// Verify checks the allocation against the current root.
func (r *Registry) Verify(proof []common.Hash, account common.Address, amount *big.Int) error {
	root, err := r.Root()
	if err != nil {
		return err
	}
	return Verify(root, proof, account, amount)
}
