package httpapi

import (
	"encoding/json"
	"net/http"

	coorderrors "github.com/distfs/coordinator/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondErrorMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a CoordinatorError to its HTTP status and {"error": "..."}
// body (§7); any other error is treated as an unclassified 500.
func respondErr(w http.ResponseWriter, err error) {
	ce, ok := err.(*coorderrors.CoordinatorError)
	if !ok {
		respondErrorMessage(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := ce.HTTPStatus
	if status == 0 {
		status = coorderrors.GetDefaultHTTPStatus(ce.Code)
	}
	body, marshalErr := ce.UserJSON()
	if marshalErr != nil {
		respondErrorMessage(w, http.StatusInternalServerError, ce.Message)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
