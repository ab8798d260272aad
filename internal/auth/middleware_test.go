package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVerifyWebhook(t *testing.T) {
	const secret = "client-secret"
	const body = `{"event_name":"item:completed"}`

	var seen string
	h := VerifyWebhook(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid", Sign(secret, []byte(body)), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", Sign("other", []byte(body)), http.StatusUnauthorized},
		{"other body", Sign(secret, []byte(`{}`)), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && seen != body {
				t.Errorf("handler saw body %q, want the verified bytes", seen)
			}
			if tt.want != http.StatusOK && seen != "" {
				t.Error("handler ran for an unverified delivery")
			}
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	a := Sign("s", []byte("payload"))
	if a != Sign("s", []byte("payload")) {
		t.Error("Sign() is not deterministic")
	}
	if a == Sign("s", []byte("payload!")) {
		t.Error("Sign() ignored the body")
	}
}
