package badger

import (
	"context"
	"testing"

	"github.com/dittoblocks/blocks/pkg/store"
	"github.com/dittoblocks/blocks/pkg/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func()) {
		s := mustStore(t)
		return s, func() { s.Stop(context.Background()) }
	})
}
