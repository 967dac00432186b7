package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nutriplan/nutriplan/internal/auth"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/domain/user"
	"github.com/nutriplan/nutriplan/internal/http/handlers"
	"github.com/nutriplan/nutriplan/internal/repo/postgres"
	"github.com/nutriplan/nutriplan/internal/security"
	"github.com/nutriplan/nutriplan/internal/session"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

// Fake user store implementing the handlers.UserReader / UserWriter interfaces

type fakeUserStore struct {
	getByEmailFn func(ctx context.Context, email string) (user.User, error)
	createFn     func(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error)
	createCalls  int
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}

	return user.User{}, postgres.ErrUserNotFound
}

func (f *fakeUserStore) Create(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error) {
	f.createCalls++

	if f.createFn != nil {
		return f.createFn(ctx, username, email, passwordHash, isGoogleUser)
	}

	return user.User{
		ID:           "00000000-0000-0000-0000-000000000001",
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsGoogleUser: isGoogleUser,
	}, nil
}

func testConfig() config.Config {
	return config.Config{
		Env:               "test",
		JWTSecret:         "test-secret-key",
		SessionTTLMinutes: 60,
	}
}

func newAuthHandler(store *fakeUserStore, revoker session.Revoker) *handlers.AuthHandler {
	cfg := testConfig()
	manager := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL())

	return handlers.NewAuthHandler(store, store, manager, revoker, cfg)
}

func setupRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Handle(method, path, h)

	return r
}

func doJSON(r *gin.Engine, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request

	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorMessageFrom(t *testing.T, body []byte) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("could not decode error envelope: %v, body=%s", err, body)
	}

	return envelope.Error.Message
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

// Register tests

func TestRegisterHandler(t *testing.T) {
	hashed, err := security.HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	tests := []struct {
		name            string
		body            string
		storeSetUp      func(*fakeUserStore)
		wantStatusCode  int
		wantMessagePart string
	}{
		{
			name: "success",
			body: `{"username":"alice","email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				// no account yet; defaults apply
			},
			wantStatusCode:  http.StatusOK,
			wantMessagePart: "",
		},
		{
			name: "conflict_password_account",
			body: `{"username":"alice","email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{ID: "u1", Email: email, PasswordHash: hashed}, nil
				}
			},
			wantStatusCode:  http.StatusBadRequest,
			wantMessagePart: "already registered. Please log in.",
		},
		{
			name: "conflict_google_account",
			body: `{"username":"alice","email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{ID: "u1", Email: email, PasswordHash: security.GooglePlaceholder, IsGoogleUser: true}, nil
				}
			},
			wantStatusCode:  http.StatusBadRequest,
			wantMessagePart: "via Google",
		},
		{
			name: "registration_race_hits_unique_index",
			body: `{"username":"alice","email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.createFn = func(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error) {
					return user.User{}, postgres.ErrEmailAlreadyUsed
				}
			},
			wantStatusCode:  http.StatusBadRequest,
			wantMessagePart: "already registered",
		},
		{
			name:           "validation_error",
			body:           `{"email":"not-an-email"}`,
			storeSetUp:     func(f *fakeUserStore) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "store_error",
			body: `{"username":"alice","email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			tt.storeSetUp(store)

			h := newAuthHandler(store, session.NewMemoryRevoker())
			r := setupRouter(http.MethodPost, "/register", h.Register)

			w := doJSON(r, http.MethodPost, "/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantMessagePart != "" {
				msg := errorMessageFrom(t, w.Body.Bytes())
				if !strings.Contains(msg, tt.wantMessagePart) {
					t.Fatalf("message %q does not contain %q", msg, tt.wantMessagePart)
				}
			}
		})
	}
}

func TestRegisterConflictMessageDiffersByAccountKind(t *testing.T) {
	body := `{"username":"alice","email":"alice@x.com","password":"pw1"}`

	messageFor := func(federated bool) string {
		store := &fakeUserStore{
			getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
				return user.User{ID: "u1", Email: email, IsGoogleUser: federated}, nil
			},
		}

		h := newAuthHandler(store, session.NewMemoryRevoker())
		r := setupRouter(http.MethodPost, "/register", h.Register)

		w := doJSON(r, http.MethodPost, "/register", body)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("got status %d, want 400", w.Code)
		}

		return errorMessageFrom(t, w.Body.Bytes())
	}

	if messageFor(true) == messageFor(false) {
		t.Fatal("conflict messages should differ for federated vs password accounts")
	}
}

// Login tests

func TestLoginHandler(t *testing.T) {
	hashed, err := security.HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	knownUser := user.User{
		ID:           "00000000-0000-0000-0000-000000000001",
		Username:     "alice",
		Email:        "alice@x.com",
		PasswordHash: hashed,
	}

	tests := []struct {
		name           string
		body           string
		storeSetUp     func(*fakeUserStore)
		wantStatusCode int
		wantCookie     bool
	}{
		{
			name: "success",
			body: `{"email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return knownUser, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantCookie:     true,
		},
		{
			name: "unknown_email",
			body: `{"email":"nobody@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, postgres.ErrUserNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name: "wrong_password",
			body: `{"email":"alice@x.com","password":"nope"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return knownUser, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "google_account_refuses_password_login",
			body: `{"email":"bob@x.com","password":"google-auth"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{
						ID:           "u2",
						Email:        email,
						PasswordHash: security.GooglePlaceholder,
						IsGoogleUser: true,
					}, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name: "store_error",
			body: `{"email":"alice@x.com","password":"pw1"}`,
			storeSetUp: func(f *fakeUserStore) {
				f.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
					return user.User{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			store := &fakeUserStore{}
			tt.storeSetUp(store)

			h := newAuthHandler(store, session.NewMemoryRevoker())
			r := setupRouter(http.MethodPost, "/login", h.Login)

			w := doJSON(r, http.MethodPost, "/login", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			cookie := sessionCookie(w)

			if tt.wantCookie {
				if cookie == nil || cookie.Value == "" {
					t.Fatal("expected a session cookie on successful login")
				}
				if !cookie.HttpOnly {
					t.Fatal("session cookie must be HttpOnly")
				}

				var resp struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if resp.ID != knownUser.ID || resp.Username != knownUser.Username {
					t.Fatalf("unexpected body: %+v", resp)
				}
			} else if cookie != nil && cookie.Value != "" {
				t.Fatal("no session cookie should be issued on failure")
			}
		})
	}
}

func TestLoginCookieResolvesToSameUser(t *testing.T) {
	hashed, err := security.HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	knownUser := user.User{ID: "user-42", Username: "alice", Email: "alice@x.com", PasswordHash: hashed}

	store := &fakeUserStore{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			return knownUser, nil
		},
	}

	h := newAuthHandler(store, session.NewMemoryRevoker())
	r := setupRouter(http.MethodPost, "/login", h.Login)

	w := doJSON(r, http.MethodPost, "/login", `{"email":"alice@x.com","password":"pw1"}`)

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	manager := auth.NewManager(testConfig().JWTSecret, time.Hour)

	claims, err := manager.VerifySessionToken(cookie.Value)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}

	if claims.UserID != knownUser.ID {
		t.Fatalf("cookie resolves to %s, want %s", claims.UserID, knownUser.ID)
	}
}

// Google login tests

func TestGoogleLoginUpsertIsIdempotent(t *testing.T) {
	var created *user.User

	store := &fakeUserStore{}
	store.getByEmailFn = func(ctx context.Context, email string) (user.User, error) {
		if created == nil {
			return user.User{}, postgres.ErrUserNotFound
		}
		return *created, nil
	}
	store.createFn = func(ctx context.Context, username, email, passwordHash string, isGoogleUser bool) (user.User, error) {
		u := user.User{
			ID:           "user-bob",
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			IsGoogleUser: isGoogleUser,
		}
		created = &u
		return u, nil
	}

	h := newAuthHandler(store, session.NewMemoryRevoker())
	r := setupRouter(http.MethodPost, "/google-login", h.GoogleLogin)

	body := `{"email":"bob@x.com","username":"Bob"}`

	for i := 0; i < 2; i++ {
		w := doJSON(r, http.MethodPost, "/google-login", body)

		if w.Code != http.StatusOK {
			t.Fatalf("call %d: got status %d, body=%s", i+1, w.Code, w.Body.String())
		}

		if sessionCookie(w) == nil {
			t.Fatalf("call %d: expected session cookie", i+1)
		}

		var profile map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
			t.Fatalf("call %d: decode profile: %v", i+1, err)
		}
		if profile["email"] != "bob@x.com" || profile["username"] != "Bob" {
			t.Fatalf("call %d: unexpected profile %v", i+1, profile)
		}
		// unset attributes come back defaulted
		if profile["gender"] != "female" || profile["age"] != "" {
			t.Fatalf("call %d: expected defaulted attributes, got %v", i+1, profile)
		}
	}

	if store.createCalls != 1 {
		t.Fatalf("expected exactly one account creation, got %d", store.createCalls)
	}

	if created == nil || !created.IsGoogleUser {
		t.Fatal("created account should be flagged as a Google account")
	}
}

// Logout tests

func TestLogoutClearsCookieAndRevokesSession(t *testing.T) {
	cfg := testConfig()
	manager := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL())
	revoker := session.NewMemoryRevoker()

	h := handlers.NewAuthHandler(&fakeUserStore{}, &fakeUserStore{}, manager, revoker, cfg)
	r := setupRouter(http.MethodPost, "/logout", h.Logout)

	raw, jti, _, err := manager.GenerateSessionToken("user-1", "alice", "alice@x.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	w := doJSON(r, http.MethodPost, "/logout", "", &http.Cookie{Name: "token", Value: raw})

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	cookie := sessionCookie(w)
	if cookie == nil || cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("expected cleared session cookie, got %+v", cookie)
	}

	revoked, err := revoker.IsRevoked(context.Background(), jti)
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("logout should revoke the presented session")
	}
}

func TestLogoutWithoutCookieStillSucceeds(t *testing.T) {
	h := newAuthHandler(&fakeUserStore{}, session.NewMemoryRevoker())
	r := setupRouter(http.MethodPost, "/logout", h.Logout)

	w := doJSON(r, http.MethodPost, "/logout", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if sessionCookie(w) == nil {
		t.Fatal("logout should always clear the cookie")
	}
}
