package security_test

import (
	"testing"

	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/security"
)

func testConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher := security.NewPasswordHasher(testConfig())

	hash, err := hasher.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	ok, err := hasher.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = hasher.Verify("wrong", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
	if hasher.NeedsRehash(hash) {
		t.Fatal("fresh hash should not need rehash")
	}
}

func TestNeedsRehashWhenParamsIncrease(t *testing.T) {
	weak := security.NewPasswordHasher(testConfig())
	hash, err := weak.Hash("pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := testConfig()
	stronger.ArgonTime = 2
	if !security.NewPasswordHasher(stronger).NeedsRehash(hash) {
		t.Fatal("expected rehash with stronger params")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := security.NewPasswordHasher(testConfig())
	for _, bad := range []string{"not-a-hash", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$a2V5"} {
		if _, err := hasher.Verify("pw", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if _, err := hasher.Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
