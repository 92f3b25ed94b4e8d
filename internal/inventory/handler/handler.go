// Package handler exposes the inventory services over HTTP. Handlers decode
// and validate requests, attach the calling operator and translate errors;
// every business rule lives in the service layer.
package handler

import (
	"net/http"

	"github.com/reliefhub/reliefhub-backend/internal/inventory/service"
	"github.com/reliefhub/reliefhub-backend/pkg/actor"
)

// caller returns the authenticated actor, or the system actor for routes
// mounted without authentication
func caller(r *http.Request) *actor.Actor {
	return actor.OrSystem(r.Context())
}

func operator(r *http.Request) service.Operator {
	return service.OperatorFrom(caller(r))
}
