package cmdutil

import (
	"context"
	"testing"

	"github.com/dittoblocks/blocks/pkg/multihash"
)

func TestParseID(t *testing.T) {
	sum, err := multihash.Sum(multihash.SHA2_256, []byte("hello"))
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}

	tests := []struct {
		name      string
		id        string
		algorithm string
		wantErr   bool
	}{
		{
			name: "canonical form",
			id:   sum.String(),
		},
		{
			name:      "bare hex with algorithm flag",
			id:        sum.Hex(),
			algorithm: string(multihash.SHA2_256),
		},
		{
			name:      "bare hex with wrong algorithm is rejected",
			id:        sum.Hex(),
			algorithm: string(multihash.SHA1),
			wantErr:   true,
		},
		{
			name:    "invalid hex",
			id:      "not-hex",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.id, tt.algorithm)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseID(%q, %q) expected an error", tt.id, tt.algorithm)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q, %q) failed: %v", tt.id, tt.algorithm, err)
			}
			if got.Hex() != sum.Hex() {
				t.Fatalf("ParseID(%q, %q) = %q, want digest %q", tt.id, tt.algorithm, got.Hex(), sum.Hex())
			}
		})
	}
}

func TestResolveStoreRequiresStoreOrConfig(t *testing.T) {
	saved := *Flags
	defer func() { *Flags = saved }()

	*Flags = GlobalFlags{}
	if _, err := ResolveStore(context.Background()); err == nil {
		t.Fatal("expected an error when neither --store nor --config is set")
	}
}

func TestResolveStoreOpensMemoryURI(t *testing.T) {
	saved := *Flags
	defer func() { *Flags = saved }()

	*Flags = GlobalFlags{StoreURI: "mem:"}
	s, err := ResolveStore(context.Background())
	if err != nil {
		t.Fatalf("ResolveStore failed: %v", err)
	}
	if s == nil {
		t.Fatal("expected a store")
	}
}
