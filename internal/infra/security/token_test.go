package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestGenerateNumericCode_AllDigitsReachable(t *testing.T) {
	seen := make(map[rune]bool, 10)
	for i := 0; i < 300; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			seen[r] = true
		}
	}
	for d := '0'; d <= '9'; d++ {
		if !seen[d] {
			t.Fatalf("digit %q never generated across 1800 samples", d)
		}
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	first := HashToken("123456")
	second := HashToken("123456")
	if first != second {
		t.Fatal("expected identical hashes for identical input")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256 digest, got %q", first)
	}
	if HashToken("654321") == first {
		t.Fatal("expected distinct hashes for distinct input")
	}
}

func TestNewCodeGenerator_SelectsStrategy(t *testing.T) {
	random := NewCodeGenerator(8, "")
	code, err := random.Generate()
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(code) != 8 {
		t.Fatalf("expected 8-digit code, got %q", code)
	}

	static := NewCodeGenerator(8, "000111")
	fixed, err := static.Generate()
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if fixed != "000111" {
		t.Fatalf("expected static code, got %q", fixed)
	}
}

func TestStaticCodeGenerator_EmptyCode(t *testing.T) {
	if _, err := (StaticCodeGenerator{Code: "  "}).Generate(); err == nil {
		t.Fatal("expected error for blank static code")
	}
}
