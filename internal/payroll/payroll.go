// Package payroll 定义工资单并渲染为与模板文档相同的页面。
package payroll

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// ErrInvalidSlip 包装工资单的全部校验错误。
var ErrInvalidSlip = errors.New("invalid salary slip")

// LineItem 一项收入或扣款，Amount 以最小货币单位计。
type LineItem struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Slip 表示一张工资单。
type Slip struct {
	ID               uint
	EmployeeName     string
	CompanyName      string
	Period           string // YYYY-MM
	Currency         string
	Earnings         []LineItem
	Deductions       []LineItem
	VerificationCode string
	IssuedAt         time.Time
}

func sum(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

func (s Slip) Gross() int64           { return sum(s.Earnings) }
func (s Slip) TotalDeductions() int64 { return sum(s.Deductions) }
func (s Slip) Net() int64             { return s.Gross() - s.TotalDeductions() }

// Validate 校验开具工资单的必填项。
func (s Slip) Validate() error {
	if strings.TrimSpace(s.EmployeeName) == "" {
		return fmt.Errorf("%w: employee name is required", ErrInvalidSlip)
	}
	if _, err := time.Parse("2006-01", s.Period); err != nil {
		return fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidSlip)
	}
	if len(s.Currency) != 3 || strings.ToUpper(s.Currency) != s.Currency {
		return fmt.Errorf("%w: currency must be a 3 letter ISO code", ErrInvalidSlip)
	}
	if len(s.Earnings) == 0 {
		return fmt.Errorf("%w: at least one earning is required", ErrInvalidSlip)
	}
	for _, group := range [][]LineItem{s.Earnings, s.Deductions} {
		for i, it := range group {
			if strings.TrimSpace(it.Label) == "" {
				return fmt.Errorf("%w: line %d has no label", ErrInvalidSlip, i+1)
			}
			if it.Amount < 0 {
				return fmt.Errorf("%w: line %q has a negative amount", ErrInvalidSlip, it.Label)
			}
		}
	}
	return nil
}

// FormatAmount 将最小货币单位格式化为 "USD 1,234.56"。
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := strconv.FormatInt(minor/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s%s %s.%02d", sign, currency, grouped.String(), minor%100)
}

// PeriodLabel 将 "2026-09" 转为 "September 2026"。
func PeriodLabel(period string) string {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return period
	}
	return t.Format("January 2006")
}

// NewVerificationCode 生成打印在工资单上的随机验真码。
func NewVerificationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
}

// QRDataURI 将 content 编码为 PNG 二维码并内联为 data URI。
func QRDataURI(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 160)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

type lineView struct {
	Label  string
	Amount string
}

type slipView struct {
	Slip       Slip
	Period     string
	Issued     string
	Earnings   []lineView
	Deductions []lineView
	Gross      string
	Deducted   string
	Net        string
	QR         template.URL
	VerifyURL  string
}

var bodyTemplate = template.Must(template.New("slip").Parse(`<h1 style="text-align: center">Salary Slip</h1>
<p style="text-align: center"><strong>{{.Slip.CompanyName}}</strong></p>
<table>
<tr><th>Employee</th><td>{{.Slip.EmployeeName}}</td><th>Period</th><td>{{.Period}}</td></tr>
<tr><th>Slip No.</th><td>{{.Slip.ID}}</td><th>Issued</th><td>{{.Issued}}</td></tr>
</table>
<h2>Earnings</h2>
<table>
{{- range .Earnings}}
<tr><td>{{.Label}}</td><td style="text-align: right">{{.Amount}}</td></tr>
{{- end}}
<tr><th>Gross pay</th><th style="text-align: right">{{.Gross}}</th></tr>
</table>
{{- if .Deductions}}
<h2>Deductions</h2>
<table>
{{- range .Deductions}}
<tr><td>{{.Label}}</td><td style="text-align: right">{{.Amount}}</td></tr>
{{- end}}
<tr><th>Total deductions</th><th style="text-align: right">{{.Deducted}}</th></tr>
</table>
{{- end}}
<h2 style="text-align: right">Net pay: {{.Net}}</h2>
<p>Verification code: <strong>{{.Slip.VerificationCode}}</strong></p>
{{- if .QR}}
<p><img src="{{.QR}}" alt="Verify at {{.VerifyURL}}" width="120" height="120"></p>
{{- end}}
`))

func lines(items []LineItem, currency string) []lineView {
	out := make([]lineView, 0, len(items))
	for _, it := range items {
		out = append(out, lineView{Label: it.Label, Amount: FormatAmount(it.Amount, currency)})
	}
	return out
}

// Body 将工资单渲染为 HTML 片段；verifyURL 非空时嵌入指向它的二维码。
func Body(s Slip, verifyURL string) (string, error) {
	view := slipView{
		Slip:       s,
		Period:     PeriodLabel(s.Period),
		Issued:     s.IssuedAt.UTC().Format("2006-01-02"),
		Earnings:   lines(s.Earnings, s.Currency),
		Deductions: lines(s.Deductions, s.Currency),
		Gross:      FormatAmount(s.Gross(), s.Currency),
		Deducted:   FormatAmount(s.TotalDeductions(), s.Currency),
		Net:        FormatAmount(s.Net(), s.Currency),
		VerifyURL:  verifyURL,
	}
	if verifyURL != "" {
		uri, err := QRDataURI(verifyURL)
		if err != nil {
			return "", err
		}
		view.QR = template.URL(uri)
	}
	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute slip template: %w", err)
	}
	return buf.String(), nil
}
