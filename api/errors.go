package api

import (
	"errors"
	"net/http"

	"github.com/canonical/marathond/marathonerr"
)

// errorToResponse maps a domain error to the HTTP status table of
// spec.md §7.
func errorToResponse(err error) Response {
	var (
		valErr      *marathonerr.ValidationError
		conflict    marathonerr.ConflictingPath
		hierarchy   marathonerr.InvalidHierarchy
		unknownGrp  marathonerr.UnknownGroup
		unknownVer  marathonerr.UnknownVersion
		inProgress  marathonerr.DeploymentInProgress
		authnFail   marathonerr.AuthenticationFailure
		authzFail   marathonerr.AuthorizationFailure
		repoFail    marathonerr.RepositoryFailure
		concurrMod  marathonerr.ConcurrentModification
	)

	switch {
	case errors.As(err, &valErr):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &conflict):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.As(err, &hierarchy):
		return ErrorResponse(http.StatusBadRequest, err.Error())
	case errors.As(err, &unknownGrp):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.As(err, &unknownVer):
		return ErrorResponse(http.StatusNotFound, err.Error())
	case errors.As(err, &inProgress):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.As(err, &authnFail):
		return ErrorResponse(http.StatusUnauthorized, err.Error())
	case errors.As(err, &authzFail):
		return ErrorResponse(http.StatusForbidden, err.Error())
	case errors.As(err, &repoFail):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &concurrMod):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	default:
		return ErrorResponse(http.StatusInternalServerError, err.Error())
	}
}
