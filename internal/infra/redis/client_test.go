package redis

import "testing"

func TestAliasKey(t *testing.T) {
	got := aliasKey("breadwatch", "0xA11CE00000000000000000000000000000000001")
	want := "breadwatch:alias:0xa11ce00000000000000000000000000000000001"
	if got != want {
		t.Errorf("aliasKey() = %q, want %q", got, want)
	}
}

func TestAliasCodec(t *testing.T) {
	tests := []struct {
		alias   string
		encoded string
	}{
		{"vitalik.eth", "vitalik.eth"},
		{"", negativeAlias},
	}

	for _, tt := range tests {
		if got := encodeAlias(tt.alias); got != tt.encoded {
			t.Errorf("encodeAlias(%q) = %q, want %q", tt.alias, got, tt.encoded)
		}
		if got := decodeAlias(tt.encoded); got != tt.alias {
			t.Errorf("decodeAlias(%q) = %q, want %q", tt.encoded, got, tt.alias)
		}
	}
}

func TestConfigEnabled(t *testing.T) {
	if (Config{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(Config{URL: "redis://localhost:6379/0"}).Enabled() {
		t.Error("config with URL should be enabled")
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "http://not-redis"}); err == nil {
		t.Error("expected error for non-redis URL")
	}
}
