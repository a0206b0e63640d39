package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workflowhr/internal/fieldschema"
	"workflowhr/internal/themes"
)

type themeResponse struct {
	themes.Theme
	SuggestedFields []fieldschema.FieldTag `json:"suggested_fields"`
}

// ListThemes 返回内置主题。选择主题只替换正文，字段需要用户自行添加。
func ListThemes(c *gin.Context) {
	list := themes.List()
	out := make([]themeResponse, 0, len(list))
	for _, t := range list {
		out = append(out, themeResponse{Theme: t, SuggestedFields: themes.SuggestedFields(t)})
	}
	c.JSON(http.StatusOK, gin.H{"themes": out})
}
