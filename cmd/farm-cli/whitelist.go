package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"stakefarm/crypto"
	"stakefarm/native/whitelist"
)

type allocationFile struct {
	Allocations []allocationEntry `yaml:"allocations"`
}

type allocationEntry struct {
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

type builtProof struct {
	Account string   `json:"account"`
	Amount  string   `json:"amount"`
	Leaf    string   `json:"leaf"`
	Proof   []string `json:"proof"`
}

type builtTree struct {
	Root   string       `json:"root"`
	Proofs []builtProof `json:"proofs"`
}

func runWhitelist(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, whitelistUsage())
		return 1
	}
	switch args[0] {
	case "build":
		return runWhitelistBuild(args[1:], stdout, stderr)
	case "verify":
		return runWhitelistVerify(args[1:], stdout, stderr)
	case "set-root":
		return runWhitelistSetRoot(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown whitelist subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, whitelistUsage())
		return 1
	}
}

func whitelistUsage() string {
	return "Usage: farm-cli whitelist <build|verify|set-root> [options]"
}

func runWhitelistBuild(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("whitelist build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "YAML file listing allocations")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(stderr, "Error: --input is required")
		return 1
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: read allocations: %v\n", err)
		return 1
	}
	out, err := buildWhitelist(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printJSON(stdout, stderr, out)
}

func buildWhitelist(data []byte) (*builtTree, error) {
	var file allocationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse allocations: %w", err)
	}
	if len(file.Allocations) == 0 {
		return nil, errors.New("allocations file lists no entries")
	}
	allocations := make([]whitelist.Allocation, len(file.Allocations))
	for i, entry := range file.Allocations {
		account, err := parseAllocationAccount(entry.Account)
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		allocations[i] = whitelist.Allocation{Account: account, Amount: amount}
	}
	tree, err := whitelist.BuildTree(allocations)
	if err != nil {
		return nil, err
	}
	out := &builtTree{Root: tree.Root().Hex()}
	for _, entry := range tree.Entries() {
		proof, err := tree.Proof(entry.Account, entry.Amount)
		if err != nil {
			return nil, err
		}
		leaf, err := whitelist.LeafHash(entry.Account, entry.Amount)
		if err != nil {
			return nil, err
		}
		out.Proofs = append(out.Proofs, builtProof{
			Account: entry.Account.Hex(),
			Amount:  entry.Amount.String(),
			Leaf:    leaf.Hex(),
			Proof:   hashesToHex(proof),
		})
	}
	return out, nil
}

func runWhitelistVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("whitelist verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rootFlag := fs.String("root", "", "allocation root")
	accountFlag := fs.String("account", "", "allocated account")
	amountFlag := fs.String("amount", "", "allocated amount")
	proofFlag := fs.String("proof", "", "comma separated proof hashes")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	root, err := parseHash(*rootFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --root: %v\n", err)
		return 1
	}
	account, err := parseAllocationAccount(*accountFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --account: %v\n", err)
		return 1
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount: %v\n", err)
		return 1
	}
	var proof []common.Hash
	for _, raw := range strings.Split(*proofFlag, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		node, err := parseHash(raw)
		if err != nil {
			fmt.Fprintf(stderr, "Error: --proof: %v\n", err)
			return 1
		}
		proof = append(proof, node)
	}
	err = whitelist.Verify(root, proof, account, amount)
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "valid")
		return 0
	case errors.Is(err, whitelist.ErrInvalidProof):
		fmt.Fprintln(stdout, "invalid")
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func parseAllocationAccount(value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, err
	}
	return addr.Common(), nil
}

func parseAmount(value string) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if cleaned == "" {
		return nil, errors.New("amount required")
	}
	amount, ok := new(big.Int).SetString(cleaned, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, errors.New("amount must not be negative")
	}
	return amount, nil
}

func parseHash(value string) (common.Hash, error) {
	trimmed := strings.TrimSpace(value)
	body := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(body) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("%q is not a 32 byte hex hash", trimmed)
	}
	decoded := common.FromHex(body)
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%q is not valid hex", trimmed)
	}
	return common.BytesToHash(decoded), nil
}

func hashesToHex(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "Error: encode output: %v\n", err)
		return 1
	}
	return 0
}
