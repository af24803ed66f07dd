package utils

import (
	"net/http"
	"slices"

	"trattoria/globals"
)

func GetUserIDFromRequest(r *http.Request) string {
	id, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok {
		return ""
	}
	return id
}

func GetUsernameFromRequest(r *http.Request) string {
	name, _ := r.Context().Value(globals.UsernameKey).(string)
	return name
}

func IsAdminRequest(r *http.Request) bool {
	roles, _ := r.Context().Value(globals.RoleKey).([]string)
	return slices.Contains(roles, globals.RoleAdmin)
}
