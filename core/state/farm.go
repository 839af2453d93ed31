package state

import (
	"fmt"
	"math/big"

	"stakefarm/crypto"
	"stakefarm/native/farm"
)

type storedFarmPool struct {
	TotalStaked       *big.Int
	AccRewardPerShare *big.Int
	LastUpdateTime    uint64
	TotalEmitted      *big.Int
	TotalClaimed      *big.Int
	ForfeitedSeconds  uint64
}

func newStoredFarmPool(pool *farm.Pool) *storedFarmPool {
	if pool == nil {
		pool = farm.NewPool()
	}
	return &storedFarmPool{
		TotalStaked:       copyBig(pool.TotalStaked),
		AccRewardPerShare: copyBig(pool.AccRewardPerShare),
		LastUpdateTime:    pool.LastUpdateTime,
		TotalEmitted:      copyBig(pool.TotalEmitted),
		TotalClaimed:      copyBig(pool.TotalClaimed),
		ForfeitedSeconds:  pool.ForfeitedSeconds,
	}
}

func (s *storedFarmPool) toPool() *farm.Pool {
	pool := farm.NewPool()
	if s == nil {
		return pool
	}
	pool.TotalStaked = copyBig(s.TotalStaked)
	pool.AccRewardPerShare = copyBig(s.AccRewardPerShare)
	pool.LastUpdateTime = s.LastUpdateTime
	pool.TotalEmitted = copyBig(s.TotalEmitted)
	pool.TotalClaimed = copyBig(s.TotalClaimed)
	pool.ForfeitedSeconds = s.ForfeitedSeconds
	return pool
}

type storedFarmParticipant struct {
	Address    []byte
	Staked     *big.Int
	RewardDebt *big.Int
	Claimable  *big.Int
}

func newStoredFarmParticipant(p *farm.Participant) *storedFarmParticipant {
	return &storedFarmParticipant{
		Address:    p.Address.Bytes(),
		Staked:     copyBig(p.Staked),
		RewardDebt: copyBig(p.RewardDebt),
		Claimable:  copyBig(p.Claimable),
	}
}

func (s *storedFarmParticipant) toParticipant(addr crypto.Address) *farm.Participant {
	p := farm.NewParticipant(addr)
	p.Staked = copyBig(s.Staked)
	p.RewardDebt = copyBig(s.RewardDebt)
	p.Claimable = copyBig(s.Claimable)
	return p
}

// GetFarmPool loads the accumulator of poolID. A nil pool is returned when
// the pool has never been written.
func (m *Manager) GetFarmPool(poolID string) (*farm.Pool, error) {
	var stored storedFarmPool
	ok, err := m.KVGet(FarmPoolKey(poolID), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load farm pool %q: %w", poolID, err)
	}
	if !ok {
		return nil, nil
	}
	return stored.toPool(), nil
}

// PutFarmPool persists the accumulator of poolID.
func (m *Manager) PutFarmPool(poolID string, pool *farm.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: farm pool must not be nil")
	}
	return m.KVPut(FarmPoolKey(poolID), newStoredFarmPool(pool))
}

// GetFarmParticipant loads the position of addr in poolID. A nil participant
// is returned when the account never interacted with the pool.
func (m *Manager) GetFarmParticipant(poolID string, addr crypto.Address) (*farm.Participant, error) {
	var stored storedFarmParticipant
	ok, err := m.KVGet(FarmParticipantKey(poolID, addr.Bytes()), &stored)
	if err != nil {
		return nil, fmt.Errorf("state: load farm participant %s: %w", addr, err)
	}
	if !ok {
		return nil, nil
	}
	return stored.toParticipant(addr), nil
}

// PutFarmParticipant persists the position. An address seen for the first
// time is appended to the pool's participant index.
func (m *Manager) PutFarmParticipant(poolID string, participant *farm.Participant) error {
	if participant == nil {
		return fmt.Errorf("state: farm participant must not be nil")
	}
	if participant.Address.IsZero() {
		return fmt.Errorf("state: farm participant address required")
	}
	addr := participant.Address.Bytes()
	key := FarmParticipantKey(poolID, addr)
	known, err := m.KVGet(key, nil)
	if err != nil {
		return err
	}
	if err := m.KVPut(key, newStoredFarmParticipant(participant)); err != nil {
		return err
	}
	if known {
		return nil
	}
	count, err := m.FarmParticipantCount(poolID)
	if err != nil {
		return err
	}
	if err := m.KVPut(FarmParticipantIndexKey(poolID, count), addr); err != nil {
		return err
	}
	return m.KVPut(FarmParticipantCountKey(poolID), count+1)
}

// FarmParticipantCount returns how many addresses have ever held a position
// in poolID.
func (m *Manager) FarmParticipantCount(poolID string) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(FarmParticipantCountKey(poolID), &count); err != nil {
		return 0, fmt.Errorf("state: load participant count: %w", err)
	}
	return count, nil
}

// FarmParticipants lists every address that holds or held a position in
// poolID, in first-seen order.
func (m *Manager) FarmParticipants(poolID string) ([]crypto.Address, error) {
	count, err := m.FarmParticipantCount(poolID)
	if err != nil {
		return nil, err
	}
	out := make([]crypto.Address, 0, count)
	for i := uint64(0); i < count; i++ {
		var raw []byte
		ok, err := m.KVGet(FarmParticipantIndexKey(poolID, i), &raw)
		if err != nil {
			return nil, err
		}
		if !ok || len(raw) != crypto.AddressLength {
			return nil, fmt.Errorf("state: malformed participant index entry %d", i)
		}
		out = append(out, crypto.NewAddress(crypto.AccountPrefix, raw))
	}
	return out, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
