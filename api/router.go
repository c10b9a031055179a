package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/canonical/marathond/auth"
	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/groupmanager"
	"github.com/canonical/marathond/logging"
)

// mutatingMethods is the set of HTTP verbs that change cluster state, for
// the ApiPostEvent publication in wrap (spec.md §6 applies this label to
// every accepted POST/PUT/DELETE, not literal HTTP POSTs only).
var mutatingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// handlerFunc is the shape every route handler implements: it receives
// the parsed request and returns the Response to render, mirroring the
// teacher's APIEndpointAction.Handler signature without the http.Request
// boilerplate repeated at every call site.
type handlerFunc func(r *http.Request) Response

// Server composes the gorilla/mux router over GroupManager and the event
// bus, the same way lxd/api.go's restServer composes the teacher's
// Daemon.
type Server struct {
	manager *groupmanager.Manager
	hub     *events.Hub
	caps    auth.Capabilities
	router  *mux.Router
}

// NewServer builds a Server with every route registered.
func NewServer(manager *groupmanager.Manager, hub *events.Hub, caps auth.Capabilities) *Server {
	s := &Server{manager: manager, hub: hub, caps: caps, router: mux.NewRouter()}
	s.router.StrictSlash(false)
	s.router.SkipClean(true)

	s.router.HandleFunc("/v2/groups", s.wrap(s.getGroups)).Methods(http.MethodGet)
	s.router.HandleFunc("/v2/groups", s.wrap(s.postGroup)).Methods(http.MethodPost)
	s.router.HandleFunc("/v2/groups", s.wrap(s.putGroup)).Methods(http.MethodPut)
	s.router.HandleFunc("/v2/groups", s.wrap(s.deleteGroup)).Methods(http.MethodDelete)

	s.router.HandleFunc("/v2/groups/{id:.*}/versions/{v}", s.wrap(s.getGroupVersion)).Methods(http.MethodGet)
	s.router.HandleFunc("/v2/groups/{id:.*}/versions", s.wrap(s.getGroupVersions)).Methods(http.MethodGet)
	s.router.HandleFunc("/v2/groups/{id:.*}", s.wrap(s.getGroups)).Methods(http.MethodGet)
	s.router.HandleFunc("/v2/groups/{id:.*}", s.wrap(s.postGroup)).Methods(http.MethodPost)
	s.router.HandleFunc("/v2/groups/{id:.*}", s.wrap(s.putGroup)).Methods(http.MethodPut)
	s.router.HandleFunc("/v2/groups/{id:.*}", s.wrap(s.deleteGroup)).Methods(http.MethodDelete)

	s.router.Handle("/v2/events", hub)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.caps != nil {
			principal, err := s.caps.Authenticate(r.Context(), r)
			if err != nil {
				_ = errorToResponse(err).Render(w)
				return
			}

			if err := s.caps.Authorize(r.Context(), principal, r.Method, pathFromRequest(r)); err != nil {
				_ = errorToResponse(err).Render(w)
				return
			}
		}

		resp := h(r)

		if s.hub != nil && mutatingMethods[r.Method] {
			if sc, ok := resp.(interface{ StatusCode() int }); ok && sc.StatusCode() < http.StatusBadRequest {
				s.hub.Publish(events.NewApiPostEvent(time.Now(), r.Method, pathFromRequest(r).String()))
			}
		}

		if err := resp.Render(w); err != nil {
			logging.Warn("failed to render response", logging.Ctx{"err": err, "path": r.URL.Path})
		}
	}
}
