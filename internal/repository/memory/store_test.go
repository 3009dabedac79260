package memory_test

import (
	"testing"

	"github.com/Rrens/formvault/internal/repository/memory"
	"github.com/Rrens/formvault/internal/repository/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return memory.NewStore()
	})
}
