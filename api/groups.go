package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/canonical/marathond/groupmanager"
	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

func pathFromRequest(r *http.Request) pathid.PathId {
	id, ok := mux.Vars(r)["id"]
	if !ok || id == "" {
		return pathid.Root
	}

	return pathid.Parse("/" + id)
}

// groupView is the JSON rendering of a Group, embedding apps/sub-groups
// per the `embed` query values recognized by spec.md §6.
type groupView struct {
	ID      string                 `json:"id"`
	Version string                 `json:"version"`
	Apps    map[string]appWire     `json:"apps,omitempty"`
	Groups  map[string]groupView   `json:"groups,omitempty"`
}

func renderGroup(g snapshot.Group, embed map[string]bool) groupView {
	v := groupView{ID: g.ID.String(), Version: g.Version.String()}

	if embed["apps"] {
		v.Apps = map[string]appWire{}
		for k, a := range g.Apps {
			v.Apps[k] = appToWire(a)
		}
	}

	if embed["groups"] {
		v.Groups = map[string]groupView{}
		for k, sub := range g.Groups {
			v.Groups[k] = renderGroup(sub, embed)
		}
	}

	return v
}

func parseEmbed(r *http.Request) map[string]bool {
	values := r.URL.Query()["embed"]
	if len(values) == 0 {
		return map[string]bool{"apps": true, "pods": true, "groups": true}
	}

	out := map[string]bool{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			out[strings.TrimSpace(part)] = true
		}
	}

	return out
}

func (s *Server) getGroups(r *http.Request) Response {
	g, ok := s.manager.Group(pathFromRequest(r))
	if !ok {
		return errorToResponse(marathonerr.UnknownGroup{Path: pathFromRequest(r).String()})
	}

	return SyncResponse(renderGroup(g, parseEmbed(r)))
}

func (s *Server) getGroupVersions(r *http.Request) Response {
	versions, err := s.manager.Versions(r.Context())
	if err != nil {
		return errorToResponse(err)
	}

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}

	return SyncResponse(out)
}

func (s *Server) getGroupVersion(r *http.Request) Response {
	id := pathFromRequest(r)

	raw := mux.Vars(r)["v"]
	version, err := timestamp.Parse(raw)
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, "invalid version: "+err.Error())
	}

	g, err := s.manager.GroupAt(r.Context(), id, version)
	if err != nil {
		return errorToResponse(err)
	}

	return SyncResponse(renderGroup(g, parseEmbed(r)))
}

func (s *Server) decodeUpdate(r *http.Request) (pathid.PathId, snapshot.GroupUpdate, Response) {
	var wire groupUpdateWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		return pathid.PathId{}, snapshot.GroupUpdate{}, ErrorResponse(http.StatusBadRequest, "invalid body: "+err.Error())
	}

	target := pathFromRequest(r)
	if target.IsRoot() && wire.ID != "" {
		target = pathid.Parse(wire.ID)
	}

	update, err := wire.toUpdate()
	if err != nil {
		return pathid.PathId{}, snapshot.GroupUpdate{}, ErrorResponse(http.StatusBadRequest, err.Error())
	}

	return target, update, nil
}

func boolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (s *Server) postGroup(r *http.Request) Response {
	target, update, errResp := s.decodeUpdate(r)
	if errResp != nil {
		return errResp
	}

	if _, ok := s.manager.Group(target); ok {
		return errorToResponse(marathonerr.ConflictingPath{Path: target.String()})
	}

	plan, err := s.manager.UpdateRoot(r.Context(), target, update, groupmanager.Options{Force: boolQuery(r, "force")})
	if err != nil {
		return errorToResponse(err)
	}

	return SyncResponseLocation(http.StatusCreated, map[string]any{
		"deploymentId": plan.ID,
		"version":      plan.Version.String(),
	}, target.String())
}

func (s *Server) putGroup(r *http.Request) Response {
	target, update, errResp := s.decodeUpdate(r)
	if errResp != nil {
		return errResp
	}

	opts := groupmanager.Options{Force: boolQuery(r, "force"), DryRun: boolQuery(r, "dryRun")}

	plan, err := s.manager.UpdateRoot(r.Context(), target, update, opts)
	if err != nil {
		return errorToResponse(err)
	}

	if opts.DryRun {
		return SyncResponse(map[string]any{"steps": plan.Steps})
	}

	return SyncResponse(map[string]any{
		"deploymentId": plan.ID,
		"version":      plan.Version.String(),
	})
}

func (s *Server) deleteGroup(r *http.Request) Response {
	target := pathFromRequest(r)

	plan, err := s.manager.DeleteGroup(r.Context(), target, groupmanager.Options{Force: boolQuery(r, "force")})
	if err != nil {
		return errorToResponse(err)
	}

	if boolQuery(r, "async") {
		return AsyncResponse(plan.ID, plan.Version.String())
	}

	return SyncResponse(map[string]any{
		"deploymentId": plan.ID,
		"version":      plan.Version.String(),
	})
}
