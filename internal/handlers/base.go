package handlers

import (
	"reflect"
	"strings"

	"circle/internal/middleware"
	"circle/internal/models"
	"circle/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// UseJSONFieldNames 校验错误中使用 json 字段名，和请求体保持一致
func UseJSONFieldNames() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// currentUser 当前登录用户 ID，由 middleware.AuthRequired 保证非 0
func currentUser(c *gin.Context) uint {
	return middleware.CurrentUserID(c)
}

func isAdmin(c *gin.Context) bool {
	return middleware.CurrentRole(c) == models.RoleAdmin
}

// idParam 解析路径中的数字 ID，失败由错误中间件转为 400
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		c.Error(err)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) utils.Page {
	return utils.NewPage(c.Query("page"), c.Query("limit"))
}

func limitQuery(c *gin.Context) int {
	return utils.StringToInt(c.Query("limit"), utils.DefaultLimit)
}

// bindJSON 绑定失败时记录错误，调用方直接 return
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.Error(err)
		return false
	}
	return true
}
