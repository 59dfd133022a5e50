package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("kitchen-display", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "kitchen-display" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "kitchen-display")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
	if claims.ExpiresAt == nil {
		t.Error("ExpiresAt should be set for a positive TTL")
	}
}

func TestGenerateToken_NoExpiry(t *testing.T) {
	token, err := GenerateToken("phone", testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", claims.ExpiresAt)
	}
}

func TestGenerateToken_Errors(t *testing.T) {
	if _, err := GenerateToken("phone", "", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("GenerateToken() without secret error = %v, want ErrNoSecret", err)
	}
	if _, err := GenerateToken("", testSecret, time.Hour); err == nil {
		t.Error("GenerateToken() without client expected error, got nil")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("phone", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "phone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{})
	noSubjectToken, err := noSubject.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "wrong secret", token: valid, secret: "another-secret-key-at-least-32-chars"},
		{name: "garbage", token: "not-a-valid-jwt", secret: testSecret},
		{name: "expired", token: expiredToken, secret: testSecret},
		{name: "missing subject", token: noSubjectToken, secret: testSecret},
		{name: "unsigned", token: unsignedToken(t), secret: testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}

	if _, err := ParseToken(valid, ""); !errors.Is(err, ErrNoSecret) {
		t.Errorf("ParseToken() without secret error = %v, want ErrNoSecret", err)
	}
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "phone"},
	})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none) error = %v", err)
	}
	return s
}
