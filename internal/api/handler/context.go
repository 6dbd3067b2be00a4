package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/bizdesk/crm-api/internal/api/middleware"
	"github.com/bizdesk/crm-api/internal/core/domain"
)

// currentUser returns the authenticated user and fails fast when the route
// was mounted without the Auth middleware.
func currentUser(c echo.Context) (*domain.User, error) {
	user := middleware.CurrentUser(c)
	if user == nil {
		return nil, domain.ErrMissingToken
	}
	return user, nil
}
