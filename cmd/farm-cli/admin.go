package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

func runMint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	tokenFile := fs.String("token-file", "", "file holding the admin token")
	symbol := fs.String("symbol", "STK", "token symbol")
	to := fs.String("to", "", "recipient address")
	amountFlag := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*to) == "" {
		fmt.Fprintln(stderr, "Error: --to is required")
		return 1
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount: %v\n", err)
		return 1
	}
	token, err := resolveAdminToken(*tokenFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	path := "/v1/tokens/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(*symbol))) + "/mint"
	body := map[string]string{"to": strings.TrimSpace(*to), "amount": amount.String()}
	raw, err := callFarmd(*endpoint, http.MethodPost, path, body, token)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}

func runWhitelistSetRoot(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("whitelist set-root", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	tokenFile := fs.String("token-file", "", "file holding the admin token")
	caller := fs.String("caller", "", "whitelist owner address")
	rootFlag := fs.String("root", "", "new allocation root")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*caller) == "" {
		fmt.Fprintln(stderr, "Error: --caller is required")
		return 1
	}
	root, err := parseHash(*rootFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --root: %v\n", err)
		return 1
	}
	token, err := resolveAdminToken(*tokenFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	body := map[string]string{"caller": strings.TrimSpace(*caller), "root": root.Hex()}
	raw, err := callFarmd(*endpoint, http.MethodPut, "/v1/whitelist/root", body, token)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}
