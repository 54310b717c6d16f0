package mcpserver

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/netcapd/netcapd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netcapd.db")
	st, err := store.Open(path, 4, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestHandleRequestRejectsMissingAuthHeader(t *testing.T) {
	srv := NewServer(openTestStore(t), "secret-token")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleRequest))
	defer httpSrv.Close()

	resp, err := http.Post(httpSrv.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 with no Authorization header", resp.StatusCode)
	}
}

func TestHandleRequestRejectsNonBearerAuthFormat(t *testing.T) {
	srv := NewServer(openTestStore(t), "secret-token")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleRequest))
	defer httpSrv.Close()

	req, _ := http.NewRequest(http.MethodPost, httpSrv.URL, strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a non-Bearer Authorization header", resp.StatusCode)
	}
}

func TestHandleRequestRejectsWrongToken(t *testing.T) {
	srv := NewServer(openTestStore(t), "secret-token")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleRequest))
	defer httpSrv.Close()

	req, _ := http.NewRequest(http.MethodPost, httpSrv.URL, strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for a mismatched bearer token", resp.StatusCode)
	}
}

func TestHandleRequestSkipsAuthCheckWhenTokenUnconfigured(t *testing.T) {
	srv := NewServer(openTestStore(t), "")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleRequest))
	defer httpSrv.Close()

	resp, err := http.Post(httpSrv.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		t.Error("status = 401 even though no bearer token was configured")
	}
}

func TestHandleRequestAcceptsCorrectToken(t *testing.T) {
	srv := NewServer(openTestStore(t), "secret-token")
	httpSrv := httptest.NewServer(http.HandlerFunc(srv.HandleRequest))
	defer httpSrv.Close()

	req, _ := http.NewRequest(http.MethodPost, httpSrv.URL, strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		t.Error("status = 401 despite a correct bearer token")
	}
}
