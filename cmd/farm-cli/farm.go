package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("farmd returned %d: %s", e.Status, e.Message)
}

func callFarmd(endpoint, method, path string, body interface{}, token string) (json.RawMessage, error) {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &failure) == nil && failure.Error != "" {
			return nil, &apiError{Status: resp.StatusCode, Message: failure.Error}
		}
		return nil, &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	}
	return payload, nil
}

func printRaw(stdout, stderr io.Writer, raw json.RawMessage) int {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Fprintf(stderr, "Error: decode response: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, buf.String())
	return 0
}

func runPending(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pending", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	account := fs.String("account", "", "participant address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*account) == "" {
		fmt.Fprintln(stderr, "Error: --account is required")
		return 1
	}
	raw, err := callFarmd(*endpoint, http.MethodGet, "/v1/pending/"+url.PathEscape(strings.TrimSpace(*account)), nil, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}

func runStakeChange(action string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(action, flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	account := fs.String("account", "", "participant address")
	amountFlag := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*account) == "" {
		fmt.Fprintln(stderr, "Error: --account is required")
		return 1
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount: %v\n", err)
		return 1
	}
	body := map[string]string{"account": strings.TrimSpace(*account), "amount": amount.String()}
	raw, err := callFarmd(*endpoint, http.MethodPost, "/v1/"+action, body, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}

func runClaim(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("claim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	account := fs.String("account", "", "participant address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*account) == "" {
		fmt.Fprintln(stderr, "Error: --account is required")
		return 1
	}
	raw, err := callFarmd(*endpoint, http.MethodPost, "/v1/claim", map[string]string{"account": strings.TrimSpace(*account)}, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}

func runApprove(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("approve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("endpoint", endpointDefault(), "farmd base URL")
	symbol := fs.String("symbol", "STK", "token symbol")
	owner := fs.String("owner", "", "token owner")
	spender := fs.String("spender", "", "spender address (defaults to pool custody)")
	amountFlag := fs.String("amount", "", "allowance in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*owner) == "" {
		fmt.Fprintln(stderr, "Error: --owner is required")
		return 1
	}
	amount, err := parseAmount(*amountFlag)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --amount: %v\n", err)
		return 1
	}
	body := map[string]string{"owner": strings.TrimSpace(*owner), "amount": amount.String()}
	if trimmed := strings.TrimSpace(*spender); trimmed != "" {
		body["spender"] = trimmed
	}
	path := "/v1/tokens/" + url.PathEscape(strings.ToUpper(strings.TrimSpace(*symbol))) + "/approve"
	raw, err := callFarmd(*endpoint, http.MethodPost, path, body, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printRaw(stdout, stderr, raw)
}
