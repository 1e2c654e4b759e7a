package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseU128(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"zero", "0", "0", false},
		{"small", "70", "70", false},
		{"above 2^53", "9007199254740993", "9007199254740993", false},
		{"30 near", "30000000000000000000000000", "30000000000000000000000000", false},
		{"max", "340282366920938463463374607431768211455", "340282366920938463463374607431768211455", false},
		{"surrounding spaces", " 42 ", "42", false},
		{"overflow", "340282366920938463463374607431768211456", "", true},
		{"negative", "-1", "", true},
		{"fraction", "1.5", "", true},
		{"empty", "", "", true},
		{"garbage", "abc", "", true},
		{"plus sign", "+1", "", true},
		{"exponent", "1e3", "", true},
		{"trailing zero fraction", "2.0", "", true},
		{"huge exponent", "1e10000000", "", true},
		{"40 digits", "1000000000000000000000000000000000000000", "", true},
		{"leading zeros", "0070", "70", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseU128(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseU128(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseU128(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseU128(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestU128_Arithmetic(t *testing.T) {
	two := NewU128(2)
	thirty := NewU128(30)

	product, err := two.Mul(thirty)
	if err != nil {
		t.Fatalf("Mul: unexpected error: %v", err)
	}
	if product.String() != "60" {
		t.Errorf("2*30 = %s, want 60", product)
	}

	sum, err := product.Add(NewU128(10))
	if err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}
	if !sum.Equal(NewU128(70)) {
		t.Errorf("60+10 = %s, want 70", sum)
	}

	if _, err := NewU128(1).Sub(NewU128(2)); err == nil {
		t.Error("1-2 should fail for unsigned values")
	}

	huge := MustParseU128("340282366920938463463374607431768211455")
	if _, err := huge.Add(NewU128(1)); err == nil {
		t.Error("max+1 should overflow")
	}
	if _, err := huge.Mul(two); err == nil {
		t.Error("max*2 should overflow")
	}

	if got := NewU128(3).Min(NewU128(5)); !got.Equal(NewU128(3)) {
		t.Errorf("Min(3,5) = %s, want 3", got)
	}
	if !NewU128(0).IsZero() || NewU128(1).IsZero() {
		t.Error("IsZero mismatch")
	}
	var zero U128
	if !zero.IsZero() || zero.String() != "0" {
		t.Errorf("zero value = %s, want 0", zero)
	}
}

func TestU128_JSON(t *testing.T) {
	type payload struct {
		Amount *U128 `json:"amount"`
	}

	t.Run("marshals as string", func(t *testing.T) {
		v := MustParseU128("30000000000000000000000000")
		b, err := json.Marshal(payload{Amount: &v})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != `{"amount":"30000000000000000000000000"}` {
			t.Errorf("got %s", b)
		}
	})

	t.Run("accepts bare integer without precision loss", func(t *testing.T) {
		var p payload
		if err := json.Unmarshal([]byte(`{"amount":30000000000000000000000000}`), &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if p.Amount.String() != "30000000000000000000000000" {
			t.Errorf("got %s", p.Amount)
		}
	})

	t.Run("accepts string", func(t *testing.T) {
		var p payload
		if err := json.Unmarshal([]byte(`{"amount":"2"}`), &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !p.Amount.Equal(NewU128(2)) {
			t.Errorf("got %s", p.Amount)
		}
	})

	t.Run("null leaves pointer nil", func(t *testing.T) {
		var p payload
		if err := json.Unmarshal([]byte(`{"amount":null}`), &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if p.Amount != nil {
			t.Errorf("expected nil, got %s", p.Amount)
		}
	})

	for _, bad := range []string{
		`{"amount":-5}`,
		`{"amount":1.5}`,
		`{"amount":"x"}`,
		`{"amount":true}`,
		`{"amount":1e3}`,
		`{"amount":2.0}`,
		`{"amount":"1e3"}`,
		`{"amount":1e100000}`,
	} {
		var p payload
		if err := json.Unmarshal([]byte(bad), &p); err == nil {
			t.Errorf("Unmarshal(%s) expected error", bad)
		}
	}
}

func TestU128_RejectsExponentWithoutExpanding(t *testing.T) {
	input := `1e10000000`

	start := time.Now()
	var u U128
	err := json.Unmarshal([]byte(input), &u)
	if err == nil {
		t.Fatal("expected error for exponent input")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("rejecting %s took %v", input, elapsed)
	}
	if len(err.Error()) > 100 {
		t.Errorf("error message is %d bytes long, want a short message", len(err.Error()))
	}
	if strings.Contains(err.Error(), "0000000000") {
		t.Errorf("error echoes the value: %s", err)
	}
}
