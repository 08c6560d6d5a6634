// Package main provides a CI-friendly smoke test for a running sessiond.
//
// It validates:
//   - login sets access and refresh cookies
//   - /me accepts the access cookie
//   - refresh rotates the refresh token
//   - replaying the old refresh token is rejected as reuse
//   - logout clears cookies and the last refresh token stops working
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

type apiError struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

type smoke struct {
	base    *url.URL
	client  *http.Client
	verbose bool
}

func main() {
	var (
		baseURL    = flag.String("url", "http://127.0.0.1:8080", "sessiond base URL")
		identifier = flag.String("user", "alice", "Login identifier")
		password   = flag.String("password", "", "Login password (or SESSIOND_SMOKE_PASSWORD)")
		refresh    = flag.String("refresh-cookie", "refresh_token", "Refresh cookie name")
		timeout    = flag.Duration("timeout", 7*time.Second, "Per-request timeout")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *password == "" {
		*password = os.Getenv("SESSIOND_SMOKE_PASSWORD")
	}
	if *password == "" {
		fatalf("missing -password")
	}

	u, err := url.Parse(*baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fatalf("invalid -url %q", *baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookiejar: %v", err)
	}
	s := &smoke{base: u, client: &http.Client{Jar: jar, Timeout: *timeout}, verbose: *verbose}

	body, _ := json.Marshal(map[string]string{"identifier": *identifier, "password": *password})
	s.expect("login", http.MethodPost, "/auth/login", body, http.StatusOK, "")

	r1 := s.cookie(*refresh)
	if r1 == "" {
		fatalf("login: no %s cookie", *refresh)
	}

	s.expect("me", http.MethodGet, "/me", nil, http.StatusOK, "")
	s.expect("refresh", http.MethodPost, "/auth/refresh", nil, http.StatusOK, "")

	r2 := s.cookie(*refresh)
	if r2 == "" || r2 == r1 {
		fatalf("refresh: token was not rotated")
	}

	s.setCookie(*refresh, r1)
	s.expect("reuse", http.MethodPost, "/auth/refresh", nil, http.StatusUnauthorized, "refresh_reused")

	s.setCookie(*refresh, r2)
	s.expect("logout", http.MethodPost, "/auth/logout", nil, http.StatusNoContent, "")
	if s.cookie(*refresh) != "" {
		fatalf("logout: refresh cookie not cleared")
	}

	s.setCookie(*refresh, r2)
	s.expect("after-logout", http.MethodPost, "/auth/refresh", nil, http.StatusUnauthorized, "")

	fmt.Println("OK: session smoke passed")
}

func (s *smoke) expect(step, method, path string, body []byte, wantStatus int, wantCode string) {
	req, err := http.NewRequest(method, s.base.ResolveReference(&url.URL{Path: path}).String(), bytes.NewReader(body))
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		fatalf("%s: %v", step, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if s.verbose {
		fmt.Printf("%s: %s %s -> %d %s\n", step, method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode != wantStatus {
		fatalf("%s: status %d, want %d (%s)", step, resp.StatusCode, wantStatus, strings.TrimSpace(string(raw)))
	}
	if wantCode != "" {
		var e apiError
		if err := json.Unmarshal(raw, &e); err != nil || e.Error.Code != wantCode {
			fatalf("%s: error code %q, want %q", step, e.Error.Code, wantCode)
		}
	}
}

func (s *smoke) cookie(name string) string {
	for _, c := range s.client.Jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (s *smoke) setCookie(name, value string) {
	s.client.Jar.SetCookies(s.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
