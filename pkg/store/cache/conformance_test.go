package cache

import (
	"testing"

	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/memory"
	"github.com/dittoblocks/blocks/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func()) {
		s, err := New(Config{Primary: memory.New(), Cache: memory.New(), SizeLimit: 1 << 20})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return s, nil
	})
}
