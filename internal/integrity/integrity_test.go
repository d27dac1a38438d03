package integrity

import (
	"testing"

	"github.com/tiervault/tiervault/pkg/errors"
)

func TestDigest_Deterministic(t *testing.T) {
	data := []byte("the same bytes")

	first := Digest(data)
	second := Digest(data)

	if first != second {
		t.Errorf("Digest not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(first))
	}
}

func TestDigest_DistinguishesContent(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("Different content produced identical digests")
	}
	if Digest(nil) != Digest([]byte{}) {
		t.Error("nil and empty slices should digest identically")
	}
}

func TestVerify(t *testing.T) {
	data := []byte("payload")
	digest := Digest(data)

	if err := Verify(data, digest); err != nil {
		t.Errorf("Verify failed for matching content: %v", err)
	}

	err := Verify([]byte("tampered"), digest)
	if err == nil {
		t.Fatal("Verify accepted mismatched content")
	}
	if !errors.IsCode(err, errors.ErrCodeDigestMismatch) {
		t.Errorf("Expected DIGEST_MISMATCH, got %v", errors.CodeOf(err))
	}
}

func TestEqual(t *testing.T) {
	d := Digest([]byte("x"))

	if !Equal(d, d) {
		t.Error("Identical digests should compare equal")
	}
	if Equal(d, Digest([]byte("y"))) {
		t.Error("Different digests should not compare equal")
	}
	if Equal("", "") {
		t.Error("Empty digests must never compare equal")
	}
	if Equal(d, "") {
		t.Error("Unknown digest must never compare equal")
	}
}
