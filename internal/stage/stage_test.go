package stage

import "testing"

func TestValidateOrdering(t *testing.T) {
	cases := []struct {
		name      string
		positions []Position
		wantErr   bool
	}{
		{"empty", nil, false},
		{"prebinary then postbinary", []Position{PreBinary, PostBinary}, false},
		{"any interleaved", []Position{PreBinary, AnyPos, PostBinary, AnyPos}, false},
		{"postbinary then prebinary", []Position{PostBinary, PreBinary}, true},
		{"postbinary any prebinary", []Position{PostBinary, AnyPos, PreBinary}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOrdering(tc.positions)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParamsRequired(t *testing.T) {
	p := NewParams(map[string]string{"algorithm": "zstd", "level": "6"})

	if _, err := p.String("missing"); err == nil {
		t.Fatal("expected MissingParameter error")
	}
	v, err := p.String("algorithm")
	if err != nil || v != "zstd" {
		t.Fatalf("got %q, %v", v, err)
	}

	n, err := p.Int("level")
	if err != nil || n != 6 {
		t.Fatalf("got %d, %v", n, err)
	}

	if _, err := p.Int("algorithm"); err == nil {
		t.Fatal("expected InvalidParameter for non-integer value")
	}
}

func TestParamsOneOf(t *testing.T) {
	p := NewParams(map[string]string{"variant": "standard"})
	if _, err := p.OneOf("variant", "standard", "url_safe"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p2 := NewParams(map[string]string{"variant": "weird"})
	if _, err := p2.OneOf("variant", "standard", "url_safe"); err == nil {
		t.Fatal("expected InvalidParameter for value outside the allowed set")
	}
}
