// Package controller shapes service results and failures into the wire
// envelope. Success payloads pass through as-is; errors go through the
// Normalizer, which owns status mapping and environment-gated detail.
package controller

import (
	"net/http"

	"github.com/crudkit/crudkit/pkg/crud"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Created writes a service result with HTTP 201. Create endpoints use it.
func Created(c router.Context, result crud.Result) error {
	return c.JSON(http.StatusCreated, result)
}

// OK writes a service result with HTTP 200. Read, update and delete
// endpoints use it; list results already carry doc_length in the envelope.
func OK(c router.Context, result crud.Result) error {
	return c.JSON(http.StatusOK, result)
}
