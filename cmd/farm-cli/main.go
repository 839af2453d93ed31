package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const defaultEndpoint = "http://127.0.0.1:8545"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	switch args[0] {
	case "whitelist":
		return runWhitelist(args[1:], stdout, stderr)
	case "pending":
		return runPending(args[1:], stdout, stderr)
	case "deposit":
		return runStakeChange("deposit", args[1:], stdout, stderr)
	case "withdraw":
		return runStakeChange("withdraw", args[1:], stdout, stderr)
	case "claim":
		return runClaim(args[1:], stdout, stderr)
	case "approve":
		return runApprove(args[1:], stdout, stderr)
	case "mint":
		return runMint(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return strings.Join([]string{
		"Usage: farm-cli <command> [options]",
		"",
		"Commands:",
		"  whitelist build --input allocations.yaml",
		"  whitelist verify --root <hash> --account <addr> --amount <n> --proof <h1,h2,...>",
		"  pending  --account <addr>",
		"  deposit  --account <addr> --amount <n>",
		"  withdraw --account <addr> --amount <n>",
		"  claim    --account <addr>",
		"  approve  --owner <addr> --amount <n> [--symbol STK] [--spender <addr>]",
		"  mint     --to <addr> --amount <n> [--symbol STK] [--token-file path]",
		"  whitelist set-root --caller <addr> --root <hash> [--token-file path]",
		"",
		"Admin commands read the token from --token-file, " + adminTokenEnv + " or a terminal prompt.",
		"",
		"Commands that talk to farmd accept --endpoint (default " + defaultEndpoint + ", env FARMD_URL).",
	}, "\n")
}

func endpointDefault() string {
	if value := strings.TrimSpace(os.Getenv("FARMD_URL")); value != "" {
		return value
	}
	return defaultEndpoint
}
