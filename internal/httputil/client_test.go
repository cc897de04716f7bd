package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewSecureClientDefaults(t *testing.T) {
	client := NewSecureClient(ClientOptions{})
	if client.Timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", client.Timeout)
	}
	transport := client.Transport.(*http.Transport)
	if !transport.DisableCompression {
		t.Error("expected DisableCompression always true")
	}
}

func TestNewSecureClientCustomTimeout(t *testing.T) {
	client := NewSecureClient(ClientOptions{Timeout: 5 * time.Minute})
	if client.Timeout != 5*time.Minute {
		t.Errorf("timeout = %v, want 5m", client.Timeout)
	}
}

func TestRedirectToHTTPBlocked(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://example.com/evil", http.StatusFound)
	}))
	defer server.Close()

	client := NewSecureClient(ClientOptions{})
	client.Transport = server.Client().Transport
	client.CheckRedirect = redirectChecker(10)

	resp, err := client.Get(server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil || !strings.Contains(err.Error(), "non-HTTPS") {
		t.Errorf("expected a non-HTTPS redirect error, got %v", err)
	}
}

func TestRedirectToPrivateIPBlocked(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://192.168.1.1/admin", http.StatusFound)
	}))
	defer server.Close()

	client := NewSecureClient(ClientOptions{})
	client.Transport = server.Client().Transport
	client.CheckRedirect = redirectChecker(10)

	resp, err := client.Get(server.URL)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil || !strings.Contains(err.Error(), "private") {
		t.Errorf("expected a private-IP redirect error, got %v", err)
	}
}

func TestTooManyRedirectsRejected(t *testing.T) {
	checker := redirectChecker(3)
	via := make([]*http.Request, 3)
	req, _ := http.NewRequest("GET", "https://example.com/page4", nil)

	err := checker(req, via)
	if err == nil || !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("expected too-many-redirects error, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", opts.Timeout)
	}
	if opts.MaxRedirects != 5 {
		t.Errorf("MaxRedirects = %d, want 5", opts.MaxRedirects)
	}
}
