package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"pgregory.net/rapid"
)

// genU128String draws a decimal string in [0, 2^128).
func genU128String() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		hi := rapid.Uint64().Draw(t, "hi")
		lo := rapid.Uint64().Draw(t, "lo")
		v := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
		v.Or(v, new(big.Int).SetUint64(lo))
		return v.String()
	})
}

func TestProperty_U128JSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genU128String().Draw(t, "value")

		v, err := ParseU128(s)
		if err != nil {
			t.Fatalf("ParseU128(%s): %v", s, err)
		}

		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(b) != fmt.Sprintf("%q", s) {
			t.Fatalf("marshal(%s) = %s", s, b)
		}

		var fromString, fromNumber U128
		if err := json.Unmarshal(b, &fromString); err != nil {
			t.Fatalf("unmarshal string form: %v", err)
		}
		if err := json.Unmarshal([]byte(s), &fromNumber); err != nil {
			t.Fatalf("unmarshal number form: %v", err)
		}
		if !fromString.Equal(v) || !fromNumber.Equal(v) {
			t.Fatalf("round trip mismatch: %s / %s / %s", v, fromString, fromNumber)
		}
	})
}

func TestProperty_U128MulMatchesBigInt(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64().Draw(t, "a")
		b := rapid.Uint64().Draw(t, "b")

		got, err := NewU128(a).Mul(NewU128(b))
		if err != nil {
			t.Fatalf("Mul(%d, %d): %v", a, b, err)
		}
		want := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
		if got.String() != want.String() {
			t.Fatalf("Mul(%d, %d) = %s, want %s", a, b, got, want)
		}
	})
}
