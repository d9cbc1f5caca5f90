package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-backend/internal/repository"
)

// AdminHandler exposes the password-change audit trail to operators.
// Routes using it sit behind RequireRole("ADMIN").
type AdminHandler struct {
	Changes repository.ChangeLogStore
}

func NewAdminHandler(ch repository.ChangeLogStore) *AdminHandler {
	return &AdminHandler{Changes: ch}
}

// auditPart deliberately omits the hashes: the audit view answers "when
// did this account's password change", never "to what".
type auditPart struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// PasswordChanges lists a user's password-change records, newest first.
func (h *AdminHandler) PasswordChanges(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	changes, err := h.Changes.History(ctx, id)
	if err != nil {
		c.Logger().Errorf("list password changes failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]auditPart, 0, len(changes))
	for _, ch := range changes {
		out = append(out, auditPart{ID: ch.ID, UserID: ch.UserID, ChangedAt: ch.ChangedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"changes": out})
}
