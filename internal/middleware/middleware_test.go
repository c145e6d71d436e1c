package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/metrics"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyAccess(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", auth.ErrInvalidToken
}

type fakeRequest struct {
	connect.AnyRequest
	procedure string
	header    http.Header
}

func (r *fakeRequest) Spec() connect.Spec { return connect.Spec{Procedure: r.procedure} }
func (r *fakeRequest) Header() http.Header { return r.header }

func TestRequireAuth(t *testing.T) {
	interceptor := RequireAuth(staticVerifier{"good": "user-1"}, "/svc/Public")

	tests := []struct {
		name      string
		procedure string
		header    string
		wantUser  string
		wantCode  connect.Code
	}{
		{"valid token", "/svc/Private", "Bearer good", "user-1", 0},
		{"missing header", "/svc/Private", "", "", connect.CodeUnauthenticated},
		{"wrong scheme", "/svc/Private", "Basic good", "", connect.CodeUnauthenticated},
		{"bad token", "/svc/Private", "Bearer bad", "", connect.CodeUnauthenticated},
		{"public without token", "/svc/Public", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			called := false
			next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				called = true
				gotUser = GetUserID(ctx)
				return nil, nil
			}

			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			_, err := interceptor(next)(context.Background(), &fakeRequest{procedure: tt.procedure, header: header})

			if tt.wantCode != 0 {
				if connect.CodeOf(err) != tt.wantCode {
					t.Fatalf("Expected %v, got %v", tt.wantCode, err)
				}
				if called {
					t.Error("Expected handler not to run")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if gotUser != tt.wantUser {
				t.Errorf("Expected user %q, got %q", tt.wantUser, gotUser)
			}
		})
	}
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	boom := connect.NewError(connect.CodeNotFound, errors.New("missing"))
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, boom
	}
	_, err := LoggingInterceptor()(next)(WithUserID(context.Background(), "user-1"), &fakeRequest{procedure: "/svc/Get", header: http.Header{}})
	if err != boom {
		t.Errorf("Expected handler error returned unchanged, got %v", err)
	}
}

func TestLoggingInterceptorCountsCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"ok", nil, "ok"},
		{"not found", connect.NewError(connect.CodeNotFound, errors.New("missing")), "not_found"},
		{"plain error", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			procedure := "/svc/" + tt.name
			counter := metrics.RPCs.WithLabelValues(procedure, tt.code)
			before := testutil.ToFloat64(counter)

			next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				return nil, tt.err
			}
			LoggingInterceptor()(next)(context.Background(), &fakeRequest{procedure: procedure, header: http.Header{}})

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("Expected one %s count, got %v", tt.code, got)
			}
		})
	}
}
