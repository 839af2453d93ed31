package farmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stakefarm/core/events"
	"stakefarm/crypto"
	"stakefarm/native/farm"
	"stakefarm/native/whitelist"
	"stakefarm/storage/archive"
)

const maxBodyBytes = 1 << 20

type amountRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type claimRequest struct {
	Account string `json:"account"`
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount"`
}

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type verifyRequest struct {
	Account string   `json:"account"`
	Amount  string   `json:"amount"`
	Proof   []string `json:"proof"`
}

type updateRootRequest struct {
	Caller string `json:"caller"`
	Root   string `json:"root"`
}

type poolResponse struct {
	PoolID            string `json:"poolId"`
	RewardRate        string `json:"rewardRatePerSecond"`
	TotalStaked       string `json:"totalStaked"`
	AccRewardPerShare string `json:"accRewardPerShare"`
	Precision         string `json:"precision"`
	LastUpdateTime    uint64 `json:"lastUpdateTime"`
	TotalEmitted      string `json:"totalEmitted"`
	TotalClaimed      string `json:"totalClaimed"`
	ForfeitedSeconds  uint64 `json:"forfeitedSeconds"`
}

type participantResponse struct {
	Account    string `json:"account"`
	Staked     string `json:"staked"`
	RewardDebt string `json:"rewardDebt"`
	Claimable  string `json:"claimable"`
}

type pendingResponse struct {
	Account string `json:"account"`
	Pending string `json:"pending"`
}

type claimResponse struct {
	Account string `json:"account"`
	Payout  string `json:"payout"`
}

type balanceResponse struct {
	Symbol  string `json:"symbol"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type whitelistResponse struct {
	Owner string `json:"owner"`
	Root  string `json:"root"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, amount, err := decodeAmountRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = traceOp(r.Context(), "deposit", account, func() error {
		return s.engine.Deposit(account, amount)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeParticipant(w, r, account)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, amount, err := decodeAmountRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = traceOp(r.Context(), "withdraw", account, func() error {
		return s.engine.Withdraw(account, amount)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeParticipant(w, r, account)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var payout *big.Int
	err = traceOp(r.Context(), "claim", account, func() error {
		var err error
		payout, err = s.engine.ClaimPendingReward(account)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{Account: account.String(), Payout: payout.String()})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pending, err := s.engine.PendingReward(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Account: account.String(), Pending: pending.String()})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.engine.Pool()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{
		PoolID:            s.engine.PoolID(),
		RewardRate:        s.engine.RewardRate().String(),
		TotalStaked:       pool.TotalStaked.String(),
		AccRewardPerShare: pool.AccRewardPerShare.String(),
		Precision:         farm.Precision().String(),
		LastUpdateTime:    pool.LastUpdateTime,
		TotalEmitted:      pool.TotalEmitted.String(),
		TotalClaimed:      pool.TotalClaimed.String(),
		ForfeitedSeconds:  pool.ForfeitedSeconds,
	})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	var accounts []crypto.Address
	err := s.state.View(func() error {
		var err error
		accounts, err = s.state.FarmParticipants(s.engine.PoolID())
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]string, len(accounts))
	for i, account := range accounts {
		out[i] = account.String()
	}
	writeJSON(w, http.StatusOK, map[string][]string{"participants": out})
}

func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccount(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeParticipant(w, r, account)
}

func (s *Server) writeParticipant(w http.ResponseWriter, r *http.Request, account crypto.Address) {
	participant, err := s.engine.Participant(account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, participantResponse{
		Account:    account.String(),
		Staked:     participant.Staked.String(),
		RewardDebt: participant.RewardDebt.String(),
		Claimable:  participant.Claimable.String(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := 100
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		limit = parsed
	}
	filter := archive.Filter{Type: strings.TrimSpace(query.Get("type")), Limit: limit}
	if raw := strings.TrimSpace(query.Get("account")); raw != "" {
		account, err := parseAccount(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		filter.Account = account.String()
	}

	var records []events.Record
	if s.archive != nil {
		var err error
		if records, err = s.archive.Query(filter); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		records = filterRecords(s.events.Recent(0), filter)
	}
	if records == nil {
		records = []events.Record{}
	}
	writeJSON(w, http.StatusOK, map[string][]events.Record{"events": records})
}

// filterRecords applies filter to in-memory records, keeping the newest
// Limit matches.
func filterRecords(records []events.Record, filter archive.Filter) []events.Record {
	out := make([]events.Record, 0, len(records))
	for _, rec := range records {
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Account != "" && rec.Attributes["account"] != filter.Account {
			continue
		}
		out = append(out, rec)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	owner, err := parseAccount(req.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	spender := s.custody
	if strings.TrimSpace(req.Spender) != "" {
		if spender, err = parseAccount(req.Spender); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	err = s.state.Atomic(func() error {
		return ledger.Approve(owner, spender, amount)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"symbol":  ledger.Symbol(),
		"owner":   owner.String(),
		"spender": spender.String(),
		"amount":  amount.String(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAccount(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var balance *big.Int
	err = s.state.View(func() error {
		var err error
		balance, err = ledger.BalanceOf(account)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Symbol: ledger.Symbol(), Account: account.String(), Balance: balance.String()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.ledger(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseAccount(req.To)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var balance *big.Int
	err = s.state.Atomic(func() error {
		if err := ledger.Mint(to, amount); err != nil {
			return err
		}
		var err error
		balance, err = ledger.BalanceOf(to)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Symbol: ledger.Symbol(), Account: to.String(), Balance: balance.String()})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var resp whitelistResponse
	err := s.state.View(func() error {
		root, err := s.registry.Root()
		if err != nil {
			return err
		}
		resp.Root = root.Hex()
		owner, err := s.registry.Owner()
		if errors.Is(err, whitelist.ErrOwnerNotSet) {
			return nil
		}
		if err != nil {
			return err
		}
		resp.Owner = owner.String()
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proof := make([]common.Hash, len(req.Proof))
	for i, raw := range req.Proof {
		if proof[i], err = parseHash(raw); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	var verifyErr error
	err = s.state.View(func() error {
		verifyErr = s.registry.Verify(proof, account.Common(), amount)
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	switch status := statusFor(verifyErr); status {
	case http.StatusOK, http.StatusUnprocessableEntity:
		writeJSON(w, http.StatusOK, map[string]bool{"valid": verifyErr == nil})
	default:
		s.writeError(w, r, verifyErr)
	}
}

func (s *Server) handleUpdateRoot(w http.ResponseWriter, r *http.Request) {
	var req updateRootRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAccount(req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	root, err := parseHash(req.Root)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var owner crypto.Address
	err = s.state.Atomic(func() error {
		if err := s.registry.UpdateRoot(caller, root); err != nil {
			return err
		}
		var err error
		owner, err = s.registry.Owner()
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, whitelistResponse{Owner: owner.String(), Root: root.Hex()})
}

func decodeBody(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func decodeAmountRequest(r *http.Request) (crypto.Address, *big.Int, error) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		return crypto.Address{}, nil, err
	}
	account, err := parseAccount(req.Account)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return account, amount, nil
}

func parseAccount(raw string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: account: %v", errBadRequest, err)
	}
	return addr, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount required", errBadRequest)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount %q is not a decimal integer", errBadRequest, trimmed)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", errBadRequest)
	}
	return amount, nil
}

func parseHash(raw string) (common.Hash, error) {
	trimmed := strings.TrimSpace(raw)
	body := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(body) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: hash %q must be 32 bytes of hex", errBadRequest, trimmed)
	}
	decoded := common.FromHex(body)
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: hash %q is not valid hex", errBadRequest, trimmed)
	}
	return common.BytesToHash(decoded), nil
}
