package storage

import (
	"fmt"
	"path"

	"github.com/google/uuid"
)

// DocumentKey 返回生成文档 PDF 的对象键：documents/<template>/<document>/<filename>。
func DocumentKey(templateID, documentID uint, filename string) string {
	return fmt.Sprintf("%s%d/%s", TemplatePrefix(templateID), documentID, path.Base(filename))
}

// TemplatePrefix 为 templateID 生成的全部文档的对象键前缀。
func TemplatePrefix(templateID uint) string {
	return fmt.Sprintf("documents/%d/", templateID)
}

// ThumbnailKey 每次生成新的随机键，避免浏览器缓存旧缩略图。
func ThumbnailKey(templateID uint) string {
	return fmt.Sprintf("thumbnails/templates/%d/%s.jpg", templateID, uuid.NewString())
}
