// Package resource mounts the REST surface for every registered model:
// collection routes for create, batch create, windowed reads, and id routes
// for single-document reads, partial updates and deletes. The handlers only
// translate between the transport and the CRUD service; every policy
// decision (duplicate checks, pagination, masking, populate) lives below.
package resource

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/crudkit/crudkit/pkg/controller"
	"github.com/crudkit/crudkit/pkg/crud"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/server/router"
)

// Handler serves the CRUD REST API for the models in a registry.
type Handler struct {
	service    *crud.Service
	registry   *crud.Registry
	normalizer *controller.Normalizer
	log        logger.Logger
}

// NewHandler creates the REST handler. All collaborators are required.
func NewHandler(service *crud.Service, registry *crud.Registry, normalizer *controller.Normalizer, log logger.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Handler{
		service:    service,
		registry:   registry,
		normalizer: normalizer,
		log:        log,
	}, nil
}

// Mount registers the discovery endpoints and one route set per registered
// model. Models registered after Mount are not picked up.
func (h *Handler) Mount(r router.Router) {
	r.GET("/models", h.handleModels)
	r.GET("/search", h.handleSearch)

	for _, desc := range h.registry.Descriptors() {
		h.mountModel(r, desc)
		h.log.Info("mounted model routes", "collection", desc.Collection)
	}
}

func (h *Handler) mountModel(r router.Router, desc crud.Descriptor) {
	base := "/" + desc.Collection
	r.POST(base, h.handleCreate(desc))
	r.POST(base+"/batch", h.handleCreateMany(desc))
	r.GET(base, h.handleGetMany(desc))
	r.GET(base+"/:id", h.handleGetOne(desc))
	r.PATCH(base+"/:id", h.handleUpdate(desc))
	r.DELETE(base+"/:id", h.handleDelete(desc))
}

func (h *Handler) handleCreate(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		var payload crud.Document
		if err := controller.Bind(c, &payload); err != nil {
			return h.normalizer.Write(c, err)
		}

		result, err := h.service.Create(c.Request().Context(), desc, payload, duplicateCheck(desc, payload))
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.Created(c, *result)
	}
}

func (h *Handler) handleCreateMany(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		var payloads []crud.Document
		if err := controller.Bind(c, &payloads); err != nil {
			return h.normalizer.Write(c, err)
		}

		checks := make([]crud.Filter, len(payloads))
		for i, payload := range payloads {
			checks[i] = duplicateCheck(desc, payload)
		}

		result, err := h.service.CreateMany(c.Request().Context(), desc, payloads, checks)
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.Created(c, *result)
	}
}

func (h *Handler) handleGetMany(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		query, err := readQuery(c)
		if err != nil {
			return h.normalizer.Write(c, err)
		}

		result, err := h.service.GetMany(c.Request().Context(), []crud.Descriptor{desc}, query.params, query.populate, query.filter)
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.OK(c, *result)
	}
}

func (h *Handler) handleGetOne(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		query, err := readQuery(c)
		if err != nil {
			return h.normalizer.Write(c, err)
		}

		result, err := h.service.GetOne(c.Request().Context(), desc, idFilter(c), query.populate)
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.OK(c, *result)
	}
}

func (h *Handler) handleUpdate(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		var update crud.Update
		if err := controller.Bind(c, &update); err != nil {
			return h.normalizer.Write(c, err)
		}

		result, err := h.service.Update(c.Request().Context(), desc, idFilter(c), update)
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.OK(c, *result)
	}
}

func (h *Handler) handleDelete(desc crud.Descriptor) router.HandlerFunc {
	return func(c router.Context) error {
		result, err := h.service.Delete(c.Request().Context(), desc, idFilter(c))
		if err != nil {
			return h.normalizer.Write(c, err)
		}
		return controller.OK(c, *result)
	}
}

// handleSearch reads several models in one request. The models query
// parameter names the collections; each block in the response keeps the
// requested order.
func (h *Handler) handleSearch(c router.Context) error {
	query, err := readQuery(c)
	if err != nil {
		return h.normalizer.Write(c, err)
	}
	descs, err := h.searchDescriptors(query.models)
	if err != nil {
		return h.normalizer.Write(c, err)
	}

	result, err := h.service.GetMany(c.Request().Context(), descs, query.params, query.populate, query.filter)
	if err != nil {
		return h.normalizer.Write(c, err)
	}
	return controller.OK(c, *result)
}

// handleModels lists the registered models and their public shape.
func (h *Handler) handleModels(c router.Context) error {
	descs := h.registry.Descriptors()
	infos := make([]modelInfo, 0, len(descs))
	for _, desc := range descs {
		infos = append(infos, describeModel(desc))
	}

	count := len(infos)
	return c.JSON(http.StatusOK, crud.Result{
		Message:       crud.MessageFetched,
		SuccessStatus: true,
		Data:          infos,
		DocLength:     &count,
	})
}

type modelInfo struct {
	Collection   string   `json:"collection"`
	ExemptFields []string `json:"exempt_fields,omitempty"`
	Relations    []string `json:"relations,omitempty"`
	UniqueKeys   []string `json:"unique_keys,omitempty"`
	HasSchema    bool     `json:"has_schema"`
}

func describeModel(desc crud.Descriptor) modelInfo {
	info := modelInfo{
		Collection:   desc.Collection,
		ExemptFields: append([]string(nil), desc.ExemptFields...),
		HasSchema:    len(desc.Schema) > 0,
	}
	for path := range desc.Relations {
		info.Relations = append(info.Relations, path)
	}
	sort.Strings(info.Relations)
	for _, key := range desc.UniqueKeys {
		name := key.Name
		if name == "" {
			name = strings.Join(key.Fields, "+")
		}
		info.UniqueKeys = append(info.UniqueKeys, name)
	}
	return info
}

func (h *Handler) searchDescriptors(models []string) ([]crud.Descriptor, error) {
	if len(models) == 0 {
		return nil, errValidation("the models query parameter is required")
	}
	descs := make([]crud.Descriptor, 0, len(models))
	for _, model := range models {
		desc, ok := h.registry.Lookup(model)
		if !ok {
			return nil, errValidation("unknown model %q", model)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func idFilter(c router.Context) crud.Filter {
	return crud.Filter{"_id": c.Param("id")}
}
