package termsync

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestResolveTokenPrecedence(t *testing.T) {
	keyring.MockInit()

	if tok, err := ResolveToken("explicit"); err != nil || tok != "explicit" {
		t.Errorf("explicit token = %q/%v", tok, err)
	}

	t.Setenv(tokenEnvVar, "from-env")
	if tok, err := ResolveToken(""); err != nil || tok != "from-env" {
		t.Errorf("env token = %q/%v", tok, err)
	}

	t.Setenv(tokenEnvVar, "")
	if err := StoreToken("from-keyring"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}
	if tok, err := ResolveToken(""); err != nil || tok != "from-keyring" {
		t.Errorf("keyring token = %q/%v", tok, err)
	}
}

func TestResolveTokenMissing(t *testing.T) {
	keyring.MockInit()
	t.Setenv(tokenEnvVar, "")

	if _, err := ResolveToken(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestForgetToken(t *testing.T) {
	keyring.MockInit()

	if err := StoreToken("tok"); err != nil {
		t.Fatalf("StoreToken: %v", err)
	}
	if err := ForgetToken(); err != nil {
		t.Fatalf("ForgetToken: %v", err)
	}
	if err := ForgetToken(); err != nil {
		t.Errorf("second ForgetToken: %v", err)
	}
	if _, err := ResolveToken(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("token survived forget: %v", err)
	}
}

func TestAuthHeader(t *testing.T) {
	h := AuthHeader("abc")
	if got := h.Get("Authorization"); got != "Bearer abc" {
		t.Errorf("Authorization = %q", got)
	}
}
