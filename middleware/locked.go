package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/stickerguard/models"
	"github.com/cppla/stickerguard/utils"
)

// LockedAccountGate rejects requests from locked accounts with 423 Locked.
// Mount it only on routes a locked user must not reach; the lock info and
// session endpoints stay outside so the terminal screen can still render.
func LockedAccountGate(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, ok := CurrentUserID(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
			ctx.Abort()
			return
		}

		var user models.User
		if err := db.Select("account_status").First(&user, "id = ?", userID).Error; err != nil {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			ctx.Abort()
			return
		}

		if user.Locked() {
			utils.Error(ctx, http.StatusLocked, 42301, "account is locked")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
