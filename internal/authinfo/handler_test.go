package authinfo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type recorderFunc func(ctx context.Context, provider string)

func (f recorderFunc) IssuerResolved(ctx context.Context, provider string) { f(ctx, provider) }

func newTestHandler(t *testing.T, settings Settings) *Handler {
	t.Helper()
	source, err := NewSource(settings, nil)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	return NewHandler(source, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandlerServeHTTP(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     map[string]string
	}{
		{
			name: "keycloak",
			settings: Settings{
				AccessTokenURI: "https://kc.example.com/auth/realms/demo/protocol/openid-connect/token",
				ClientID:       "web_app",
				Scope:          "openid profile email",
			},
			want: map[string]string{
				"issuer":   "https://kc.example.com/auth/realms/demo",
				"clientId": "web_app",
				"scope":    "openid profile email",
			},
		},
		{
			name: "okta",
			settings: Settings{
				AccessTokenURI: "https://dev-1.okta.com/oauth2/v1/token",
				ClientID:       "0oa1b2c3",
				Scope:          "openid",
			},
			want: map[string]string{
				"issuer":   "https://dev-1.okta.com/oauth2",
				"clientId": "0oa1b2c3",
				"scope":    "openid",
			},
		},
		{
			name:     "empty configuration",
			settings: Settings{},
			want: map[string]string{
				"issuer":   "",
				"clientId": "",
				"scope":    "",
			},
		},
		{
			name: "client id and scope are verbatim",
			settings: Settings{
				AccessTokenURI: "https://auth.example.com/token",
				ClientID:       "  /protocol id ",
				Scope:          " read  write ",
			},
			want: map[string]string{
				"issuer":   "https://auth.example.com/token",
				"clientId": "  /protocol id ",
				"scope":    " read  write ",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.settings)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			body := decode(t, rec)
			if len(body) != len(tt.want) {
				t.Errorf("body has %d fields, want %d: %v", len(body), len(tt.want), body)
			}
			for k, v := range tt.want {
				if body[k] != v {
					t.Errorf("body[%q] = %q, want %q", k, body[k], v)
				}
			}
		})
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, Settings{})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, Path, nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", method, rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET, HEAD" {
			t.Errorf("%s: Allow = %q", method, allow)
		}
	}
}

func TestHandlerHead(t *testing.T) {
	h := newTestHandler(t, Settings{ClientID: "web_app"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, Path, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD should not write a body, got %q", rec.Body.String())
	}
}

func TestHandlerRecorder(t *testing.T) {
	var got []string
	h := newTestHandler(t, Settings{AccessTokenURI: "https://dev-1.okta.com/oauth2/v1/token"}).
		WithRecorder(recorderFunc(func(_ context.Context, provider string) {
			got = append(got, provider)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, Path, nil))

	if len(got) != 1 || got[0] != ProviderOkta {
		t.Errorf("recorded providers = %v, want [okta]", got)
	}
}

func TestHandlerReload(t *testing.T) {
	source, err := NewSource(Settings{AccessTokenURI: "https://dev-1.okta.com/oauth2/v1/token"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(source, nil)

	if got := h.Get(context.Background()).Issuer(); got != "https://dev-1.okta.com/oauth2" {
		t.Fatalf("Issuer() = %q", got)
	}

	err = source.Update(Settings{AccessTokenURI: "https://idp.example.com/tenant/oauth2/token"},
		[]IssuerRule{{Marker: "/oauth2/token", Provider: "custom"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := h.Get(context.Background()).Issuer(); got != "https://idp.example.com/tenant" {
		t.Errorf("Issuer() after reload = %q", got)
	}

	// invalid update keeps the previous snapshot
	if err := source.Update(Settings{}, []IssuerRule{{Marker: ""}}); err == nil {
		t.Fatal("expected error for invalid rules")
	}
	if got := h.Get(context.Background()).Issuer(); got != "https://idp.example.com/tenant" {
		t.Errorf("Issuer() after failed reload = %q", got)
	}
}

func TestHandlerConcurrent(t *testing.T) {
	h := newTestHandler(t, Settings{
		AccessTokenURI: "https://kc.example.com/auth/realms/demo/protocol/openid-connect/token",
		ClientID:       "web_app",
	})

	var wg sync.WaitGroup
	errs := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, Path, nil))
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["issuer"] != "https://kc.example.com/auth/realms/demo" {
				errs <- rec.Body.String()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for body := range errs {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewAuthInfo(t *testing.T) {
	resolver, _ := NewResolver(nil)
	info, provider := NewAuthInfo(Settings{
		AccessTokenURI: "https://kc.example.com/auth/realms/demo/protocol/openid-connect/token",
		ClientID:       "web_app",
		Scope:          "openid",
	}, resolver)

	if info.Issuer() != "https://kc.example.com/auth/realms/demo" {
		t.Errorf("Issuer() = %q", info.Issuer())
	}
	if provider != "keycloak" {
		t.Errorf("provider = %q, want keycloak", provider)
	}
	if info.ClientID() != "web_app" || info.Scope() != "openid" {
		t.Errorf("ClientID() = %q, Scope() = %q", info.ClientID(), info.Scope())
	}

	data, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"issuer":"https://kc.example.com/auth/realms/demo","clientId":"web_app","scope":"openid"}`
	if string(data) != want {
		t.Errorf("MarshalJSON() = %s, want %s", data, want)
	}
}
