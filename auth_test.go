package main

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"testing/quick"
)

// postForm sends a form post without following redirects and returns the
// response with its body read.
func postForm(t *testing.T, rawURL string, form url.Values) (*http.Response, string) {
	t.Helper()
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.PostForm(rawURL, form)
	if err != nil {
		t.Fatalf("POST %s: %v", rawURL, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(body)
}

// sessionCookie pulls the session cookie out of a response, failing the test
// when it is missing.
func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestSignupWithName(t *testing.T) {
	ctx := newTestContext(t)

	f := func(nameSuffix uint8) bool {
		name := generateTestName("User", nameSuffix)
		ctx.logger.Debug("TestSignupWithName", "signing up %s", name)

		resp, _ := postForm(t, ctx.baseURL+"/signup", url.Values{"name": {name}})
		if resp.Header.Get("HX-Redirect") != "/game" {
			t.Errorf("HX-Redirect = %q, want /game", resp.Header.Get("HX-Redirect"))
			return false
		}
		sessionCookie(t, resp)

		var account Account
		if err := ctx.db.Get(&account, "SELECT id, name, secret_code FROM player WHERE name = ?", name); err != nil {
			t.Errorf("player row for %s: %v", name, err)
			return false
		}
		if account.SecretCode == "" {
			t.Error("account should have a secret code")
			return false
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 5}); err != nil {
		t.Error(err)
	}
}

func TestSignupRejectsDuplicateName(t *testing.T) {
	ctx := newTestContext(t)

	resp, _ := postForm(t, ctx.baseURL+"/signup", url.Values{"name": {"Alice"}})
	if resp.Header.Get("HX-Redirect") != "/game" {
		t.Fatalf("first signup should redirect, got %q", resp.Header.Get("HX-Redirect"))
	}

	resp, body := postForm(t, ctx.baseURL+"/signup", url.Values{"name": {"Alice"}})
	if resp.Header.Get("HX-Redirect") != "" {
		t.Error("duplicate signup should not redirect")
	}
	if !strings.Contains(body, "Name already taken") {
		t.Errorf("expected duplicate name toast, got %q", body)
	}
}

func TestSignupRequiresName(t *testing.T) {
	ctx := newTestContext(t)

	_, body := postForm(t, ctx.baseURL+"/signup", url.Values{})
	if !strings.Contains(body, "Name is required") {
		t.Errorf("expected missing name toast, got %q", body)
	}
}

func TestLoginWithSecretCode(t *testing.T) {
	ctx := newTestContext(t)

	postForm(t, ctx.baseURL+"/signup", url.Values{"name": {"Bob"}})

	var account Account
	if err := ctx.db.Get(&account, "SELECT id, name, secret_code FROM player WHERE name = ?", "Bob"); err != nil {
		t.Fatalf("player row: %v", err)
	}

	// Wrong code first.
	resp, body := postForm(t, ctx.baseURL+"/login", url.Values{
		"name": {"Bob"}, "secret_code": {"nope"},
	})
	if resp.Header.Get("HX-Redirect") != "" {
		t.Error("wrong secret code should not redirect")
	}
	if !strings.Contains(body, "Invalid name or secret code") {
		t.Errorf("expected invalid login toast, got %q", body)
	}

	// Then the real one.
	resp, _ = postForm(t, ctx.baseURL+"/login", url.Values{
		"name": {"Bob"}, "secret_code": {account.SecretCode},
	})
	if resp.Header.Get("HX-Redirect") != "/game" {
		t.Errorf("HX-Redirect = %q, want /game", resp.Header.Get("HX-Redirect"))
	}
	cookie := sessionCookie(t, resp)

	// The session resolves back to the same account.
	var playerID string
	if err := ctx.db.Get(&playerID, "SELECT player_id FROM session WHERE token = ?", cookie.Value); err != nil {
		t.Fatalf("session row: %v", err)
	}
	if playerID != account.ID {
		t.Errorf("session player = %s, want %s", playerID, account.ID)
	}
}

func TestLogoutDeletesSession(t *testing.T) {
	ctx := newTestContext(t)

	resp, _ := postForm(t, ctx.baseURL+"/signup", url.Values{"name": {"Carol"}})
	cookie := sessionCookie(t, resp)

	req, err := http.NewRequest(http.MethodGet, ctx.baseURL+"/logout", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(cookie)
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	logoutResp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /logout: %v", err)
	}
	logoutResp.Body.Close()
	if logoutResp.StatusCode != http.StatusSeeOther {
		t.Errorf("logout status = %d, want 303", logoutResp.StatusCode)
	}

	var count int
	if err := ctx.db.Get(&count, "SELECT COUNT(*) FROM session WHERE token = ?", cookie.Value); err != nil {
		t.Fatalf("counting sessions: %v", err)
	}
	if count != 0 {
		t.Error("session row should be deleted on logout")
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	ctx := newTestContext(t)

	resp, err := http.Get(ctx.baseURL + "/ws")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}
