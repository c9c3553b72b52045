package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/util"
)

// PrincipalMiddleware 讀取 auth gateway 帶入的身分 header
// header 缺少或格式錯誤時不寫入 context，由 handler 回傳 401
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.Atoi(r.Header.Get(constants.HeaderUserID))
		if err != nil || userID <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		role := model.RoleCustomer
		if strings.EqualFold(r.Header.Get(constants.HeaderUserRole), string(model.RoleAdmin)) {
			role = model.RoleAdmin
		}

		ctx := util.WithPrincipal(r.Context(), model.Principal{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
