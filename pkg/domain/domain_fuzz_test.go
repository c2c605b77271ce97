//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseAccount tests that parsing never panics on arbitrary input and a
// parsed account always round-trips through its hex form.
//
// Justification: trust boundary functions must handle arbitrary input safely.
func FuzzParseAccount(f *testing.F) {
	f.Add("")
	f.Add("0xb000000000000000000000000000000000000b0b")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("0x")
	f.Add("'; DROP TABLE balances;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAccount(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseAccount(a.Hex())
		if err != nil {
			t.Errorf("valid account failed round-trip: %v", err)
		}
		if roundTrip != a {
			t.Error("round-trip changed account value")
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}

// FuzzParseAmount checks decimal round-trips for every accepted amount.
func FuzzParseAmount(f *testing.F) {
	f.Add("0")
	f.Add("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	f.Add("unlimited")
	f.Add("-0")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseAmount(a.Dec())
		if err != nil {
			t.Fatalf("valid amount failed round-trip: %v", err)
		}
		if !roundTrip.Eq(a) {
			t.Error("round-trip changed amount value")
		}
	})
}
