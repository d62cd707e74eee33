package v1

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/casa-rifa/raffle-api/internal/api/handler/v1/response"
	"github.com/casa-rifa/raffle-api/internal/api/middleware"
	"github.com/casa-rifa/raffle-api/internal/domain"
)

var errNoAuthenticatedUser = errors.New("no authenticated user in request context")

// getUserFromContext resolves the acting user from the verified JWT's user
// ID, re-loading the record so flags like IsAdmin come from the database
// and never from the client.
func getUserFromContext(ctx *gin.Context, uSvc UserService) (domain.User, *response.Err) {
	value, exists := ctx.Get(middleware.ContextKeyUserID)
	if !exists {
		return domain.User{}, response.ErrWrongCredentials(errNoAuthenticatedUser)
	}

	userID, ok := value.(uuid.UUID)
	if !ok {
		return domain.User{}, response.ErrWrongCredentials(errNoAuthenticatedUser)
	}

	user, err := uSvc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		return domain.User{}, response.ErrWrongCredentials(err)
	}

	return user, nil
}
