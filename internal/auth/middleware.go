package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
)

// SignatureHeader is where Todoist puts the webhook signature.
const SignatureHeader = "X-Todoist-Hmac-SHA256"

// maxSignedBody caps how much of a webhook body is buffered for verification.
const maxSignedBody = 1 << 20

// Sign returns the signature Todoist would send for body: base64 of
// HMAC-SHA256 keyed with the app's client secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook is a middleware that rejects webhook deliveries whose
// signature does not match the body.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
//
// WHY READ THE BODY HERE?
// The signature covers the raw bytes, so they have to be read before the
// handler decodes them. The buffered copy is put back on r.Body so the
// handler sees exactly what was verified.
//
// hmac.Equal compares in constant time; a plain == would leak how many
// leading bytes of a forged signature were right.
func VerifyWebhook(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBody))
			if err != nil {
				http.Error(w, `{"error":"bad_request","message":"unreadable body"}`, http.StatusBadRequest)
				return
			}

			got := r.Header.Get(SignatureHeader)
			want := Sign(secret, body)
			if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
				http.Error(w, `{"error":"unauthorized","message":"invalid webhook signature"}`, http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
