package secrets

import (
	"context"
	"testing"

	"github.com/tiervault/tiervault/pkg/errors"
)

func TestEnvProvider_Resolve(t *testing.T) {
	t.Setenv("STORAGE_CREDENTIALS", "AKIA:secret")

	provider := EnvProvider{}

	tests := []struct {
		name   string
		secret string
	}{
		{"dash separator", "storage-credentials"},
		{"slash separator", "storage/credentials"},
		{"dot separator", "storage.credentials"},
		{"already uppercase", "STORAGE_CREDENTIALS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := provider.Resolve(context.Background(), tt.secret)
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.secret, err)
			}
			if value != "AKIA:secret" {
				t.Errorf("Resolve(%q) = %q, want %q", tt.secret, value, "AKIA:secret")
			}
		})
	}
}

func TestEnvProvider_Missing(t *testing.T) {
	provider := EnvProvider{}

	_, err := provider.Resolve(context.Background(), "definitely-not-set-anywhere")
	if err == nil {
		t.Fatal("Expected error for missing secret")
	}
	if !errors.IsCode(err, errors.ErrCodeSecretNotFound) {
		t.Errorf("Expected SECRET_NOT_FOUND, got %v", errors.CodeOf(err))
	}
}
