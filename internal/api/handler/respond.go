package handler

import (
	"encoding/json"
	"net/http"
	"tle_arena/internal/api/middleware"
	"tle_arena/internal/common"
)

// respondError maps a service error to its status. Unexpected failures are not
// echoed to the client.
func respondError(w http.ResponseWriter, err error) {
	code := common.HTTPStatusFromError(err)
	if code == http.StatusInternalServerError {
		common.RespondWithError(w, code, "Internal server error")
		return
	}
	common.RespondWithError(w, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// caller returns the authenticated user's id and role, empty for anonymous requests.
func caller(r *http.Request) (userID, role string) {
	userID, _ = middleware.GetUserIDFromContext(r.Context())
	role, _ = middleware.GetUserRoleFromContext(r.Context())
	return userID, role
}
