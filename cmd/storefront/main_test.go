package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunReturnsSetupErrors(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "storefront.log")
	t.Setenv("STOREFRONT_LOG_FILE", logFile)
	t.Setenv("STOREFRONT_VALIDATION_POLICY", "bogus")

	err := run()
	if err == nil || !strings.HasPrefix(err.Error(), "config:") {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, statErr := os.Stat(logFile); statErr != nil {
		t.Fatalf("expected log file to be opened before the failure: %v", statErr)
	}
}

func TestRunReportsUnopenableLogFile(t *testing.T) {
	t.Setenv("STOREFRONT_LOG_FILE", filepath.Join(t.TempDir(), "missing", "storefront.log"))

	err := run()
	if err == nil || !strings.Contains(err.Error(), "open log file") {
		t.Fatalf("expected log file error, got %v", err)
	}
}
