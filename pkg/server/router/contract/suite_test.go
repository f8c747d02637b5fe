package contract

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/crudkit/crudkit/pkg/server/router"
	nethttpadapter "github.com/crudkit/crudkit/pkg/server/router/nethttp"
)

func TestPerformRequest_Helper(t *testing.T) {
	r := nethttpadapter.NewRouter()
	r.POST("/documents", func(c router.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusCreated, c.Request().Header.Get("Content-Type")+"|"+string(body))
	})

	res := performRequest(r, http.MethodPost, "/documents", strings.NewReader(`{"name":"a"}`), "application/json")
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if got := res.Body.String(); got != `application/json|{"name":"a"}` {
		t.Fatalf("helper did not carry content type and body, got %q", got)
	}
}
