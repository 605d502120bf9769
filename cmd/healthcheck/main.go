// Package main provides a lightweight health check binary for init containers.
// This replaces curl-based health checks since the container image doesn't include curl.
//
// Usage:
//
//	healthcheck <url> [--timeout=<duration>] [--interval=<duration>] [--max-retries=<n>]
//
// Examples:
//
//	healthcheck http://prometheus-gateway:8080/health
//	healthcheck https://kubernetes.default.svc/healthz --insecure --bearer-token-file=/var/run/secrets/kubernetes.io/serviceaccount/token
//	healthcheck http://service:8080/healthz --max-retries=30 --header="X-Probe: devops-agent"
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// stringSlice collects repeated flag values.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP request timeout")
	interval := flag.Duration("interval", 10*time.Second, "Retry interval between health checks")
	maxRetries := flag.Int("max-retries", 0, "Maximum number of retries (0 = unlimited)")
	bearerTokenFile := flag.String("bearer-token-file", "", "File containing a bearer token for the Authorization header")
	bearerToken := flag.String("bearer-token", "", "Bearer token for the Authorization header (file takes precedence)")
	insecure := flag.Bool("insecure", false, "Skip TLS certificate verification")

	var headerFlags stringSlice
	flag.Var(&headerFlags, "header", "Custom header in 'Name: value' form (repeatable)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: healthcheck <url> [--timeout=<duration>] [--interval=<duration>] [--max-retries=<n>]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  healthcheck http://prometheus-gateway:8080/health")
		fmt.Fprintln(os.Stderr, "  healthcheck http://service:8080/healthz --max-retries=30")
		os.Exit(1)
	}
	url := args[0]

	token, err := loadBearerToken(*bearerTokenFile, *bearerToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bearer token: %v\n", err)
		os.Exit(1)
	}

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid header: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	if *insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	retries := 0
	for {
		status, err := check(client, url, token, headers)
		if err == nil {
			fmt.Printf("Service at %s is ready! (HTTP %d)\n", url, status)
			os.Exit(0)
		}
		fmt.Printf("Service at %s not ready: %v\n", url, err)

		retries++
		if *maxRetries > 0 && retries >= *maxRetries {
			fmt.Fprintf(os.Stderr, "Max retries (%d) exceeded, giving up\n", *maxRetries)
			os.Exit(1)
		}

		fmt.Printf("Retrying in %v... (attempt %d", *interval, retries)
		if *maxRetries > 0 {
			fmt.Printf("/%d", *maxRetries)
		}
		fmt.Println(")")
		time.Sleep(*interval)
	}
}

// check performs a single probe and returns the status code on success.
func check(client *http.Client, url, token string, headers map[string]string) (int, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// loadBearerToken reads the token from the file when given, otherwise
// returns the direct value. Both empty means no token.
func loadBearerToken(file, value string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(value), nil
}

// parseHeaders converts 'Name: value' strings into a header map. The value
// may contain colons; surrounding whitespace is trimmed.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, found := strings.Cut(h, ":")
		if !found {
			return nil, fmt.Errorf("%q is not in 'Name: value' form", h)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%q has an empty header name", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
