package tickets

import (
	"net/http"

	"trattoria/utils"

	"github.com/julienschmidt/httprouter"
)

// VerifyHandler lets staff validate a scanned check-in code.
func VerifyHandler(secret []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Payload string `json:"payload"`
		}
		if err := utils.DecodeJSON(r, &body); err != nil || body.Payload == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "payload is required")
			return
		}
		kind, id, err := Verify(body.Payload, secret)
		if err != nil {
			utils.RespondWithJSON(w, http.StatusOK, map[string]any{"valid": false})
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]any{"valid": true, "kind": kind, "id": id})
	}
}
