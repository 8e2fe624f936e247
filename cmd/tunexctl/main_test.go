package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExitCodeClassification(t *testing.T) {
	if got := exitCode(&requestError{msg: "server returned 500"}); got != exitFailure {
		t.Errorf("request failure exit = %d, want %d", got, exitFailure)
	}
	// Anything cobra surfaces (unknown command, bad flag, invalid
	// argument) is a usage error.
	if got := exitCode(errors.New(`unknown command "nope"`)); got != exitUsage {
		t.Errorf("usage error exit = %d, want %d", got, exitUsage)
	}
}

func TestCallAPIErrorExitsWithFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"kind":"Conflict","message":"run is not finished"}}`))
	}))
	defer srv.Close()

	err := newAPIClient(srv.URL).call("GET", "/orchestrate/report", nil)
	if err == nil {
		t.Fatal("4xx response returned nil error")
	}
	if got := exitCode(err); got != exitFailure {
		t.Errorf("exit = %d, want %d", got, exitFailure)
	}
}

func TestCallTransportErrorExitsWithFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	err := newAPIClient(srv.URL).call("GET", "/api/version", nil)
	if err == nil {
		t.Fatal("unreachable server returned nil error")
	}
	if got := exitCode(err); got != exitFailure {
		t.Errorf("exit = %d, want %d", got, exitFailure)
	}
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"test"}`))
	}))
	defer srv.Close()

	if err := newAPIClient(srv.URL).call("GET", "/api/version", nil); err != nil {
		t.Fatalf("2xx response returned %v", err)
	}
}
