package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/mock-pdf/eligibility", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"isFreeEligible":false,"subscriptionAllowanceRemaining":0}`))
	})
	mux.HandleFunc("GET /api/v1/mock-pdf/pricing", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"currency":"INR","firstNUnitPrice":500,"specificUnitPrice":1000,"freeTierSize":50,"allowedSizes":[50,100]}`))
	})
	mux.HandleFunc("GET /api/v1/mock-pdf/requests", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"jobId":"job-1","status":"completed","strategy":"first_n","count":50,"isFree":false,"amount":25000,"currency":"INR","paid":true,"createdAt":"2026-01-02T03:04:05Z"}]}`))
	})
	mux.HandleFunc("GET /api/v1/mock-pdf/requests/{id}/download", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":{"code":"not_ready","message":"Your PDF is not ready yet"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEligibilityCommand(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "--api", srv.URL, "--token", "tok", "eligibility")
	require.NoError(t, err)

	assert.Contains(t, out, "free bundle:      used")
	assert.Contains(t, out, "first_n price:    INR 5.00 per design")
	assert.Contains(t, out, "bundle sizes:     50, 100")
}

func TestQuoteCommandPricesPaidBundle(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "--api", srv.URL, "--token", "tok", "quote", "--strategy", "specific", "--count", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "price:    INR 500.00 (INR 10.00 x 50)")
}

func TestDownloadsCommandListsRequests(t *testing.T) {
	srv := fakeAPI(t)
	out, err := run(t, "--api", srv.URL, "--token", "tok", "downloads")
	require.NoError(t, err)
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "INR 250.00")
}

func TestDownloadCommandSavesFile(t *testing.T) {
	srv := fakeAPI(t)
	path := filepath.Join(t.TempDir(), "bundle.pdf")
	out, err := run(t, "--api", srv.URL, "--token", "tok", "download", "job-1", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "saved:")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}

func TestDownloadCommandRemovesFileOnError(t *testing.T) {
	srv := fakeAPI(t)
	path := filepath.Join(t.TempDir(), "bundle.pdf")
	_, err := run(t, "--api", srv.URL, "--token", "tok", "download", "job-2", "-o", path)
	require.Error(t, err)
	assert.Equal(t, "Your PDF is not ready yet", describe(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCommandsRequireToken(t *testing.T) {
	t.Setenv("MOCKPDF_TOKEN", "")
	_, err := run(t, "--api", "http://localhost:1", "--token", "", "downloads")
	assert.ErrorContains(t, err, "token is required")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 500.00", formatAmount(50000, "INR"))
	assert.Equal(t, "0.05", formatAmount(5, ""))
	assert.Equal(t, "-1.50", formatAmount(-150, ""))
}

func TestDescribeKeepsUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
