package chains

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ChainID
		wantErr bool
	}{
		{"ethereum", Ethereum, false},
		{"ETHEREUM", Ethereum, false},
		{" base ", Base, false},
		{"bsc", BSC, false},
		{"solana", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(Overrides{
		ExplorerKeys: map[ChainID]string{Ethereum: "key123"},
		RPCURLs:      map[ChainID]string{Ethereum: "http://localhost:8545"},
		ExplorerURLs: map[ChainID]string{Ethereum: "http://localhost:9999/api"},
	})

	cfg, ok := r.Get(Ethereum)
	if !ok {
		t.Fatal("ethereum should be registered")
	}
	if cfg.ExplorerKey != "key123" {
		t.Errorf("explorer key not applied: %q", cfg.ExplorerKey)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Errorf("rpc url not applied: %q", cfg.RPCURL)
	}
	if cfg.ExplorerURL != "http://localhost:9999/api" {
		t.Errorf("explorer url not applied: %q", cfg.ExplorerURL)
	}

	// Untouched chain keeps built-in explorer URL
	bsc, _ := r.Get(BSC)
	if bsc.ExplorerURL != "https://api.bscscan.com/api" {
		t.Errorf("bsc explorer url changed unexpectedly: %q", bsc.ExplorerURL)
	}
}

func TestTrustedProtocolCaseInsensitive(t *testing.T) {
	r := NewRegistry(Overrides{})

	name, ok := r.TrustedProtocol("0x7a250D5630B4cF539739dF2C5dAcb4c659F2488D")
	if !ok {
		t.Fatal("uniswap router should be trusted")
	}
	if name != "Uniswap V2 Router" {
		t.Errorf("unexpected name %q", name)
	}

	if _, ok := r.TrustedProtocol("0x0000000000000000000000000000000000000001"); ok {
		t.Error("unknown address should not be trusted")
	}
}
