package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/pkg/sku"
)

// DefaultPageLimit is the page size used when a list request names none.
const DefaultPageLimit = 50

// itemUnavailableMessage is all a buyer learns about a failed checkout item.
const itemUnavailableMessage = "One or more items in your order are no longer available"

type errorMapping struct {
	target error
	status int
}

var errorMappings = []errorMapping{
	{models.ErrInvalidRequest, http.StatusBadRequest},
	{models.ErrSelfReference, http.StatusBadRequest},
	{models.ErrInvalidComponent, http.StatusBadRequest},
	{sku.ErrMalformedSKU, http.StatusBadRequest},
	{sku.ErrInvalidFieldLength, http.StatusBadRequest},
	{sku.ErrVersionOutOfRange, http.StatusBadRequest},
	{models.ErrCircularReference, http.StatusConflict},
	{models.ErrMaxDepthExceeded, http.StatusConflict},
	{models.ErrDuplicateEdge, http.StatusConflict},
	{models.ErrComponentInUse, http.StatusConflict},
	{models.ErrInvalidTransition, http.StatusConflict},
	{models.ErrSKUExists, http.StatusConflict},
	{models.ErrStaleVersion, http.StatusConflict},
	{models.ErrProductUnavailable, http.StatusConflict},
	{sku.ErrVersionLimitReached, http.StatusConflict},
	{models.ErrProductNotFound, http.StatusNotFound},
	{models.ErrEdgeNotFound, http.StatusNotFound},
	{models.ErrOrderNotFound, http.StatusNotFound},
	{models.ErrItemUnavailable, http.StatusUnprocessableEntity},
	{models.ErrInsufficientStock, http.StatusUnprocessableEntity},
	{models.ErrCatalogUnavailable, http.StatusServiceUnavailable},
}

// ErrorStatus maps a catalog error to its HTTP status and error code. Unknown
// errors map to 500 INTERNAL_ERROR.
func ErrorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.target.Error()
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// HandleError writes err using the standard envelope. Internal errors and
// checkout failures are logged and answered with a generic message.
func HandleError(c *gin.Context, err error) {
	status, code := ErrorStatus(err)
	switch {
	case status == http.StatusInternalServerError:
		log.Error().Err(err).Str("request_id", requestID(c)).Str("path", c.FullPath()).Msg("request failed")
		Error(c, status, code, "Internal server error")
	case errors.Is(err, models.ErrItemUnavailable):
		Error(c, status, code, itemUnavailableMessage)
	default:
		Error(c, status, code, err.Error())
	}
}
