package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const adminTokenEnv = "FARMD_ADMIN_TOKEN"

// readTerminalSecret prompts on stderr; swapped out in tests.
var readTerminalSecret = func(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no terminal available")
	}
	fmt.Fprint(os.Stderr, prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return string(bytes), nil
}

// resolveAdminToken picks the admin credential from --token-file, then
// FARMD_ADMIN_TOKEN, then an interactive prompt.
func resolveAdminToken(tokenFile string) (string, error) {
	if path := strings.TrimSpace(tokenFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("token file %s is empty", path)
		}
		return token, nil
	}
	if value, ok := os.LookupEnv(adminTokenEnv); ok {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s is set but empty", adminTokenEnv)
		}
		return strings.TrimSpace(value), nil
	}
	value, err := readTerminalSecret("Enter farmd admin token: ")
	if err != nil {
		return "", fmt.Errorf("admin token required; set %s or use --token-file: %w", adminTokenEnv, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", errors.New("admin token cannot be empty")
	}
	return strings.TrimSpace(value), nil
}
