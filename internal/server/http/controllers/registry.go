package controllers

import (
	"net/http"

	"github.com/rzbill/taskboard/internal/runtime"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general  *GeneralController
	channels *ChannelsController
}

// NewControllerRegistry initializes all controllers with the provided
// runtime and channel service.
func NewControllerRegistry(rt *runtime.Runtime, svc *channelsvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt, svc),
		channels: NewChannelsController(svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.channels.RegisterRoutes(mux)
}
