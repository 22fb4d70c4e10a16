package dedup

import (
	"context"
	"errors"
	"testing"
)

type lookupFake struct {
	known map[string]bool
	err   error
}

func (f lookupFake) HasFingerprint(_ context.Context, fingerprint string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[fingerprint], nil
}

func TestFingerprintIsContentOnly(t *testing.T) {
	a := Fingerprint("Python is a high-level language.")
	b := Fingerprint("Python is a high-level language.")
	c := Fingerprint("Python is a high-level language. ")
	if a != b {
		t.Fatalf("expected identical fingerprints for identical content")
	}
	if a == c {
		t.Fatalf("expected whitespace change to alter fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestIsDuplicate(t *testing.T) {
	ctx := context.Background()
	fp := Fingerprint("doc")
	existing := lookupFake{known: map[string]bool{fp: true}}

	dup, err := IsDuplicate(ctx, fp, existing, nil)
	if err != nil || !dup {
		t.Fatalf("expected indexed fingerprint to be duplicate, got %v %v", dup, err)
	}

	other := Fingerprint("other")
	dup, err = IsDuplicate(ctx, other, existing, map[string]struct{}{other: {}})
	if err != nil || !dup {
		t.Fatalf("expected batch fingerprint to be duplicate, got %v %v", dup, err)
	}

	dup, err = IsDuplicate(ctx, other, existing, nil)
	if err != nil || dup {
		t.Fatalf("expected new fingerprint, got %v %v", dup, err)
	}

	if _, err := IsDuplicate(ctx, other, lookupFake{err: errors.New("down")}, nil); err == nil {
		t.Fatalf("expected lookup error")
	}
}
