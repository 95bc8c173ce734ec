package api

import (
	"errors"
	"net/http"

	"CoinPulse/internal/domain/models"
	xhttp "CoinPulse/pkg/http"
)

var domainErrors = xhttp.ErrorTranslator{
	{Code: "ERR_MALFORMED_INPUT", Status: http.StatusBadRequest, Match: func(err error) (string, bool) {
		var malformed *models.MalformedInputError
		if errors.As(err, &malformed) {
			return malformed.Field, true
		}
		return "", false
	}},
	{Code: "ERR_GLOBAL_RULE_UNDELETABLE", Status: http.StatusBadRequest, Match: xhttp.Is(models.ErrGlobalRuleUndeletable)},
	{Code: "ERR_INVALID_RULE", Status: http.StatusBadRequest, Match: xhttp.Is(models.ErrInvalidRule)},
	{Code: xhttp.CodeNotFound, Status: http.StatusNotFound, Match: xhttp.Is(models.ErrNotFound)},
}

// toAppError maps domain errors onto API error codes. Unknown errors are
// returned unchanged and become a generic 500.
func toAppError(err error) error {
	return domainErrors.Translate(err)
}
