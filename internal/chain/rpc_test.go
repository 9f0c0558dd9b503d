package chain

import "testing"

func TestDecodeAttr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		// base64 of "offer_asset" / "uzig"
		{"b2ZmZXJfYXNzZXQ=", "offer_asset"},
		{"dXppZw==", "uzig"},
		// plain attribute values that are also valid base64 alphabet but
		// decode to non-printable bytes stay untouched
		{"swap", "swap"},
		{"uzig", "uzig"},
		// not base64 at all
		{"factory/zig1abc/ucoin", "factory/zig1abc/ucoin"},
		{"1000000", "1000000"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := decodeAttr(tc.in); got != tc.want {
			t.Fatalf("decodeAttr(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewRPCClient_LegacyAttrFlag(t *testing.T) {
	t.Setenv("RPC_LEGACY_ATTR_DECODE", "")
	if NewRPCClient("http://localhost").legacyAttrs {
		t.Fatal("legacy decode should be off by default")
	}

	t.Setenv("RPC_LEGACY_ATTR_DECODE", "TRUE")
	if !NewRPCClient("http://localhost").legacyAttrs {
		t.Fatal("legacy decode should honor RPC_LEGACY_ATTR_DECODE")
	}
}
