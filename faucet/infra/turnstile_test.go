package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTurnstile_Success(t *testing.T) {
	forms := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		forms <- map[string]string{
			"secret":          r.PostForm.Get("secret"),
			"response":        r.PostForm.Get("response"),
			"remoteip":        r.PostForm.Get("remoteip"),
			"idempotency_key": r.PostForm.Get("idempotency_key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	v := NewTurnstileVerifier("secret", "site", WithTurnstileEndpoint(srv.URL))
	res := v.Verify(context.Background(), "tok", "1.2.3.4")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	form := <-forms
	if form["secret"] != "secret" || form["response"] != "tok" || form["remoteip"] != "1.2.3.4" {
		t.Fatalf("unexpected form: %v", form)
	}
	if form["idempotency_key"] == "" {
		t.Fatalf("idempotency key should be sent")
	}
}

func TestTurnstile_OmitsUnknownIP(t *testing.T) {
	saw := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		_, ok := r.PostForm["remoteip"]
		saw <- ok
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	v := NewTurnstileVerifier("secret", "site", WithTurnstileEndpoint(srv.URL))
	_ = v.Verify(context.Background(), "tok", "unknown")
	if <-saw {
		t.Fatalf("remoteip must be omitted when the client ip is unknown")
	}
}

func TestTurnstile_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"provider codes", http.StatusOK, `{"success":false,"error-codes":["timeout-or-duplicate"]}`, "timeout-or-duplicate"},
		{"no codes", http.StatusOK, `{"success":false}`, "turnstile_verification_failed"},
		{"http error", http.StatusBadGateway, `oops`, "http_502"},
		{"bad json", http.StatusOK, `not json`, "invalid_siteverify_response"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			v := NewTurnstileVerifier("secret", "site", WithTurnstileEndpoint(srv.URL))
			res := v.Verify(context.Background(), "tok", "1.2.3.4")
			if res.Success {
				t.Fatalf("expected failure")
			}
			if len(res.Errors) == 0 || res.Errors[0] != c.want {
				t.Fatalf("expected %q, got %v", c.want, res.Errors)
			}
		})
	}
}

func TestTurnstile_NotConfigured(t *testing.T) {
	v := NewTurnstileVerifier("", "site")
	if v.Configured() {
		t.Fatalf("verifier without secret must not be configured")
	}
	res := v.Verify(context.Background(), "tok", "1.2.3.4")
	if res.Success || res.Errors[0] != "turnstile_secret_not_configured" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if NewTurnstileVerifier("secret", "").Configured() {
		t.Fatalf("verifier without site key must not be configured")
	}
}

func TestTurnstile_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	v := NewTurnstileVerifier("secret", "site", WithTurnstileEndpoint(url), WithTurnstileClient(srv.Client()))
	res := v.Verify(context.Background(), "tok", "1.2.3.4")
	if res.Success || len(res.Errors) != 1 || res.Errors[0] == "" {
		t.Fatalf("expected transport error code, got %+v", res)
	}
}
