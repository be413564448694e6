package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stickerguard/middleware"
	"github.com/cppla/stickerguard/services"
	"github.com/cppla/stickerguard/utils"
)

// LockController serves the terminal lock screen.
type LockController struct {
	lock *services.LockService
}

// NewLockController creates a LockController.
func NewLockController(lock *services.LockService) *LockController {
	return &LockController{lock: lock}
}

// Info returns when and why the account was locked and what was lost.
// Reachable while locked; that is its whole purpose.
func (l *LockController) Info(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	info, err := l.lock.Info(userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load lock info")
		return
	}

	utils.Success(ctx, info)
}
