// vaultctl is a small interactive client for the PassVault HTTP API.
// It prompts for credentials on the terminal (passwords without echo) and
// talks JSON to a running server.
//
// Usage:
//
//	vaultctl -s http://localhost:8080 signup
//	vaultctl -s http://localhost:8080 login
//	vaultctl -s http://localhost:8080 list
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

// test seam for term.ReadPassword
var readPassword = term.ReadPassword

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) postJSON(path string, body any, token string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(req)
}

func getSimpleText(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt + "\n> ")
	line, err := reader.ReadString('\n')
	if err != nil && !(err == io.EOF && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func getPassword() (string, error) {
	fmt.Print("Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n", resp.Status, bytes.TrimSpace(body))
	return nil
}

func signup(c *client, reader *bufio.Reader) error {
	email, err := getSimpleText(reader, "Email")
	if err != nil {
		return err
	}
	password, err := getPassword()
	if err != nil {
		return err
	}
	resp, err := c.postJSON("/api/signup", map[string]string{"email": email, "password": password}, "")
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func login(c *client, reader *bufio.Reader) (string, error) {
	email, err := getSimpleText(reader, "Email")
	if err != nil {
		return "", err
	}
	password, err := getPassword()
	if err != nil {
		return "", err
	}
	code, err := getSimpleText(reader, "2FA code (leave empty if not enabled)")
	if err != nil {
		return "", err
	}

	resp, err := c.postJSON("/api/login", map[string]string{
		"email": email, "password": password, "token": code,
	}, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s %s", resp.Status, bytes.TrimSpace(body))
	}

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", err
	}
	fmt.Println("Logged in.")
	return tokens.AccessToken, nil
}

func list(c *client, token string) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/vault", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func run() error {
	addr := flag.String("s", "http://localhost:8080", "server base URL")
	flag.Parse()

	if flag.NArg() < 1 {
		return fmt.Errorf("usage: vaultctl [-s url] signup|login|list")
	}

	c := &client{baseURL: strings.TrimRight(*addr, "/"), http: &http.Client{}}
	reader := bufio.NewReader(os.Stdin)

	switch flag.Arg(0) {
	case "signup":
		return signup(c, reader)
	case "login":
		_, err := login(c, reader)
		return err
	case "list":
		// list needs a session; log in first
		token, err := login(c, reader)
		if err != nil {
			return err
		}
		return list(c, token)
	default:
		return fmt.Errorf("unknown command %q", flag.Arg(0))
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
