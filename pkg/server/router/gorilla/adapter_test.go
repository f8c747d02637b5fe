package gorilla

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

func TestToMuxPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/documents", want: "/documents"},
		{in: "/documents/:id", want: "/documents/{id}"},
		{in: "/models/:name/documents/:docId", want: "/models/{name}/documents/{docId}"},
		{in: "/", want: "/"},
	}
	for _, tt := range tests {
		if got := toMuxPath(tt.in); got != tt.want {
			t.Errorf("toMuxPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
