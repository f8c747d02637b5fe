package gin

import (
	"testing"

	"github.com/crudkit/crudkit/pkg/server/router"
	"github.com/crudkit/crudkit/pkg/server/router/contract"
)

func TestRouterContract(t *testing.T) {
	contract.TestRouterContract(t, func() router.Router {
		return NewRouter()
	})
}
