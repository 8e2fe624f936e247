package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Exit codes: 0 success, 1 failed request (API error or transport
// failure), 2 usage error.
const (
	exitFailure = 1
	exitUsage   = 2
)

// requestError is a request that failed, either in transport or with a
// non-2xx response. It exits with exitFailure; everything else a
// command returns is a usage error.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	var re *requestError
	if errors.As(err, &re) {
		return exitFailure
	}
	return exitUsage
}

// apiClient is a thin JSON client over the admin API.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// call issues one request and pretty-prints the JSON response to
// stdout. Failures come back as a requestError for main to exit on.
func (c *apiClient) call(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &requestError{msg: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return &requestError{msg: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &requestError{msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &requestError{msg: fmt.Sprintf("read response: %v", err)}
	}

	pretty := prettyJSON(raw)
	if resp.StatusCode >= 400 {
		return &requestError{msg: fmt.Sprintf("server returned %d:\n%s", resp.StatusCode, pretty)}
	}
	fmt.Fprintln(os.Stdout, pretty)
	return nil
}

func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
