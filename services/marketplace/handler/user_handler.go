package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/services/bidding/helpers"
	"github.com/philippspitzley/auctioneer/utils"
)

// MeHandler handles GET /users/me
func (h *MarketplaceHandler) MeHandler(c *gin.Context) {
	actor, ok := currentUser(c, "MeHandler")
	if !ok {
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), actor.UserID)
	if err != nil {
		helpers.RespondError(c, "MeHandler", err, map[string]any{"user_id": actor.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewUserResponse(user), "user retrieved successfully")
}

// CreateUserHandler handles POST /users (admin)
func (h *MarketplaceHandler) CreateUserHandler(c *gin.Context) {
	actor, ok := currentUser(c, "CreateUserHandler")
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateUserHandler", err)
		return
	}

	user, err := h.service.CreateUser(c.Request.Context(), actor, req.toNewUser())
	if err != nil {
		helpers.RespondError(c, "CreateUserHandler", err, map[string]any{"username": req.Username})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, NewUserResponse(user), "user created successfully")
	helpers.LogSuccess("CreateUserHandler", "user created successfully", map[string]any{
		"user_id": user.UserID,
		"role":    user.Role,
	})
}

// GetUserHandler handles GET /users/:user_id
func (h *MarketplaceHandler) GetUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewUserResponse(user), "user retrieved successfully")
}

// ListUsersHandler handles GET /users
func (h *MarketplaceHandler) ListUsersHandler(c *gin.Context) {
	q, err := helpers.BindListQuery[repository.UserField](c)
	if err != nil {
		helpers.RespondError(c, "ListUsersHandler", err, nil)
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), q)
	if err != nil && !helpers.IsEmptyResult(err) {
		helpers.RespondError(c, "ListUsersHandler", err, nil)
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewUserResponses(users), "users retrieved successfully")
	helpers.LogSuccess("ListUsersHandler", "users retrieved successfully", map[string]any{"count": len(users)})
}

// UpdateUserHandler handles PATCH /users/:user_id
func (h *MarketplaceHandler) UpdateUserHandler(c *gin.Context) {
	actor, ok := currentUser(c, "UpdateUserHandler")
	if !ok {
		return
	}
	userID := c.Param("user_id")

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateUserHandler", err)
		return
	}

	user, err := h.service.UpdateUser(c.Request.Context(), actor, userID, req.toUpdate())
	if err != nil {
		helpers.RespondError(c, "UpdateUserHandler", err, map[string]any{"user_id": userID, "actor": actor.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, NewUserResponse(user), "user updated successfully")
	helpers.LogSuccess("UpdateUserHandler", "user updated successfully", map[string]any{"user_id": userID})
}

// DeleteUserHandler handles DELETE /users/:user_id (admin)
func (h *MarketplaceHandler) DeleteUserHandler(c *gin.Context) {
	actor, ok := currentUser(c, "DeleteUserHandler")
	if !ok {
		return
	}
	userID := c.Param("user_id")

	if err := h.service.DeleteUser(c.Request.Context(), actor, userID); err != nil {
		helpers.RespondError(c, "DeleteUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "user deleted successfully")
	helpers.LogSuccess("DeleteUserHandler", "user deleted successfully", map[string]any{"user_id": userID})
}
