package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-retail-core/internal/auth"
	"go-retail-core/internal/backup"
	"go-retail-core/internal/catalog"
	"go-retail-core/internal/invoice"
	"go-retail-core/internal/ledger"
	"go-retail-core/internal/settings"
	"go-retail-core/internal/tax"
)

// Handler carries the core services into the HTTP layer. The handlers only
// translate between JSON and the typed operations; all invariants live in
// the services.
type Handler struct {
	DB       *gorm.DB
	Catalog  *catalog.Service
	Engine   *invoice.Engine
	Ledger   *ledger.Store
	Backups  *backup.Manager
	Gate     *auth.Gate
	Settings *settings.Store
	Log      *logrus.Logger
}

// respondError maps the core error taxonomy to status codes. Anything not in
// the taxonomy is a storage failure and is reported as a 500 without leaking
// internals.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		insufficient *invoice.InsufficientStockError
		invalidLine  *tax.InvalidLineItemError
		unauthorized *auth.UnauthorizedError
		drift        *ledger.DriftError
	)

	switch {
	case errors.Is(err, tax.ErrEmptyInvoice),
		errors.As(err, &invalidLine),
		errors.Is(err, invoice.ErrInactiveSalesPerson),
		errors.Is(err, backup.ErrCorruptSnapshot):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, auth.ErrAuthFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.As(err, &unauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, catalog.ErrUnknownProduct),
		errors.Is(err, catalog.ErrUnknownCustomer),
		errors.Is(err, catalog.ErrUnknownSalesPerson),
		errors.Is(err, ledger.ErrUnknownProduct),
		errors.Is(err, invoice.ErrUnknownInvoice),
		errors.Is(err, backup.ErrUnknownSnapshot):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.As(err, &insufficient),
		errors.Is(err, invoice.ErrDuplicateInvoiceNumber),
		errors.Is(err, invoice.ErrAlreadyReversed),
		errors.Is(err, invoice.ErrNotReversible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.As(err, &drift):
		// detected dataset corruption, not a transient failure
		h.Log.WithFields(logrus.Fields{
			"product_id": drift.ProductID,
			"cached":     drift.Cached,
			"ledger_sum": drift.LedgerSum,
		}).Error("stock projection drift")
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"consistent": false,
		})

	default:
		h.Log.WithError(err).Error("storage failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
