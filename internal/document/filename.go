package document

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const fallbackSlug = "document"

// Slug 由文档名生成文件名：连续空白变为下划线，去除文件名中不安全的字符。
func Slug(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r) || r == '_':
			pendingSep = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// PDFFilename 生成文档的下载文件名。
func PDFFilename(documentName string, now time.Time) string {
	return fmt.Sprintf("%s_%s.pdf", Slug(documentName), now.Format("2006-01-02"))
}

// SalarySlipFilename 工资单的下载文件名。
func SalarySlipFilename(id uint) string {
	return fmt.Sprintf("salary_slip_%d.pdf", id)
}

// ExportFilename 模板导出的下载文件名。
func ExportFilename(documentName string) string {
	return Slug(documentName) + ".json"
}
