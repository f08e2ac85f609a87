package sha256

import "testing"

func TestHasherKnownDigests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":            "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"hello world": "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
	}
	h := New()
	for in, want := range cases {
		got, err := h.Hash([]byte(in))
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("Hash(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestHasherDistinguishesPDFs(t *testing.T) {
	t.Parallel()

	h := New()
	a, _ := h.Hash([]byte("%PDF-1.7 a"))
	b, _ := h.Hash([]byte("%PDF-1.7 b"))
	if a == b {
		t.Fatal("expected different digests for different documents")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}
