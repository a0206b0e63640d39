package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"workflowhr/internal/api/middleware"
	"workflowhr/internal/auth"
	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/payroll"
	"workflowhr/internal/render"
)

// SalarySlipHandler 负责工资单的创建、查看、PDF 下载与验真。
type SalarySlipHandler struct {
	db            *gorm.DB
	renderer      render.Generator
	publicBaseURL string
	now           func() time.Time
}

func NewSalarySlipHandler(deps Dependencies) *SalarySlipHandler {
	return &SalarySlipHandler{
		db:            deps.DB,
		renderer:      deps.Renderer,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(deps.Config.PublicBaseURL), "/"),
		now:           deps.clock(),
	}
}

type createSalarySlipRequest struct {
	EmployeeID   uint               `json:"employee_id" binding:"required"`
	EmployeeName string             `json:"employee_name"`
	CompanyName  string             `json:"company_name"`
	Period       string             `json:"period" binding:"required"`
	Currency     string             `json:"currency" binding:"required"`
	Earnings     []payroll.LineItem `json:"earnings"`
	Deductions   []payroll.LineItem `json:"deductions"`
}

type salarySlipResponse struct {
	ID               uint               `json:"id"`
	EmployeeID       uint               `json:"employee_id"`
	EmployeeName     string             `json:"employee_name"`
	CompanyName      string             `json:"company_name,omitempty"`
	Period           string             `json:"period"`
	Currency         string             `json:"currency"`
	Earnings         []payroll.LineItem `json:"earnings"`
	Deductions       []payroll.LineItem `json:"deductions"`
	Gross            int64              `json:"gross"`
	TotalDeductions  int64              `json:"total_deductions"`
	Net              int64              `json:"net"`
	VerificationCode string             `json:"verification_code"`
	IssuedAt         time.Time          `json:"issued_at"`
}

func toSlip(model database.SalarySlip) (payroll.Slip, error) {
	slip := payroll.Slip{
		ID:               model.ID,
		EmployeeName:     model.EmployeeName,
		CompanyName:      model.CompanyName,
		Period:           model.Period,
		Currency:         model.Currency,
		VerificationCode: model.VerificationCode,
		IssuedAt:         model.CreatedAt,
	}
	if len(model.Earnings) > 0 {
		if err := json.Unmarshal(model.Earnings, &slip.Earnings); err != nil {
			return slip, fmt.Errorf("decode earnings: %w", err)
		}
	}
	if len(model.Deductions) > 0 {
		if err := json.Unmarshal(model.Deductions, &slip.Deductions); err != nil {
			return slip, fmt.Errorf("decode deductions: %w", err)
		}
	}
	return slip, nil
}

func newSalarySlipResponse(model database.SalarySlip, slip payroll.Slip) salarySlipResponse {
	deductions := slip.Deductions
	if deductions == nil {
		deductions = []payroll.LineItem{}
	}
	return salarySlipResponse{
		ID:               model.ID,
		EmployeeID:       model.EmployeeID,
		EmployeeName:     slip.EmployeeName,
		CompanyName:      slip.CompanyName,
		Period:           slip.Period,
		Currency:         slip.Currency,
		Earnings:         slip.Earnings,
		Deductions:       deductions,
		Gross:            slip.Gross(),
		TotalDeductions:  slip.TotalDeductions(),
		Net:              slip.Net(),
		VerificationCode: slip.VerificationCode,
		IssuedAt:         model.CreatedAt,
	}
}

// POST /v1/salary-slips
func (h *SalarySlipHandler) Create(c *gin.Context) {
	issuer, ok := currentUser(c, h.db)
	if !ok {
		return
	}

	var req createSalarySlipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(c).With(slog.Uint64("employee_id", uint64(req.EmployeeID)), slog.String("period", req.Period))

	var employee database.User
	if err := companyUsers(h.db.WithContext(ctx), issuer.CompanyID).First(&employee, req.EmployeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "employee not found")
		} else {
			Internal(c, "failed to query employee")
		}
		return
	}

	name := strings.TrimSpace(req.EmployeeName)
	if name == "" {
		name = employee.Username
	}
	slip := payroll.Slip{
		EmployeeName: name,
		CompanyName:  strings.TrimSpace(req.CompanyName),
		Period:       req.Period,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		Earnings:     req.Earnings,
		Deductions:   req.Deductions,
	}
	if err := slip.Validate(); err != nil {
		BadRequest(c, err.Error())
		return
	}

	var existing int64
	if err := h.db.WithContext(ctx).Model(&database.SalarySlip{}).
		Where("employee_id = ? AND period = ?", employee.ID, slip.Period).
		Count(&existing).Error; err != nil {
		Internal(c, "failed to query salary slips")
		return
	}
	if existing > 0 {
		Conflict(c, "salary slip already issued for this period")
		return
	}

	earnings, err := json.Marshal(slip.Earnings)
	if err != nil {
		Internal(c, "failed to encode earnings")
		return
	}
	deductions, err := json.Marshal(slip.Deductions)
	if err != nil {
		Internal(c, "failed to encode deductions")
		return
	}

	model := database.SalarySlip{
		EmployeeID:       employee.ID,
		EmployeeName:     slip.EmployeeName,
		CompanyName:      slip.CompanyName,
		Period:           slip.Period,
		Currency:         slip.Currency,
		Earnings:         earnings,
		Deductions:       deductions,
		IssuedBy:         issuer.ID,
		VerificationCode: payroll.NewVerificationCode(),
	}
	if err := h.db.WithContext(ctx).Create(&model).Error; err != nil {
		logger.Error("create salary slip failed", slog.Any("error", err))
		Internal(c, "failed to create salary slip")
		return
	}
	slip.VerificationCode = model.VerificationCode

	logger.Info("salary slip issued", slog.Uint64("salary_slip_id", uint64(model.ID)))
	c.JSON(http.StatusCreated, newSalarySlipResponse(model, slip))
}

// companyUsers 限定与 companyID 同一公司的账号，nil 表示未归属公司的账号。
func companyUsers(db *gorm.DB, companyID *uint) *gorm.DB {
	if companyID == nil {
		return db.Where("company_id IS NULL")
	}
	return db.Where("company_id = ?", *companyID)
}

// loadSlip 员工只能查看自己的工资单；HR 与管理员只能查看本公司员工的工资单。
func (h *SalarySlipHandler) loadSlip(c *gin.Context) (database.SalarySlip, payroll.Slip, bool) {
	user, ok := currentUser(c, h.db)
	if !ok {
		return database.SalarySlip{}, payroll.Slip{}, false
	}
	id, err := parseID(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid salary slip id")
		return database.SalarySlip{}, payroll.Slip{}, false
	}

	query := h.db.WithContext(c.Request.Context())
	if auth.CanManageTemplates(middleware.RoleFromContext(c)) {
		employees := companyUsers(h.db.Model(&database.User{}).Select("id"), user.CompanyID)
		query = query.Where("employee_id IN (?)", employees)
	} else {
		query = query.Where("employee_id = ?", user.ID)
	}
	var model database.SalarySlip
	if err := query.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "salary slip not found")
		} else {
			Internal(c, "failed to query salary slip")
		}
		return model, payroll.Slip{}, false
	}
	slip, err := toSlip(model)
	if err != nil {
		Internal(c, "failed to decode salary slip")
		return model, slip, false
	}
	return model, slip, true
}

// GET /v1/salary-slips/:id
func (h *SalarySlipHandler) Get(c *gin.Context) {
	model, slip, ok := h.loadSlip(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSalarySlipResponse(model, slip))
}

func (h *SalarySlipHandler) verifyURL(code string) string {
	if h.publicBaseURL == "" {
		return ""
	}
	return h.publicBaseURL + "/v1/verify/salary-slips/" + code
}

// GET /v1/salary-slips/:id/pdf
func (h *SalarySlipHandler) PDF(c *gin.Context) {
	model, slip, ok := h.loadSlip(c)
	if !ok {
		return
	}
	logger := loggerFor(c).With(slog.Uint64("salary_slip_id", uint64(model.ID)))

	body, err := payroll.Body(slip, h.verifyURL(slip.VerificationCode))
	if err != nil {
		logger.Error("build salary slip body failed", slog.Any("error", err))
		Internal(c, "failed to build salary slip")
		return
	}
	settings := document.DefaultSettings()
	settings.ShowFooter = true
	settings.FooterText = "This salary slip is computer generated and does not require a signature."
	page, err := document.Page("Salary Slip", settings, body)
	if err != nil {
		Internal(c, "failed to build salary slip")
		return
	}

	result, err := h.renderer.Generate(c.Request.Context(), page, render.PageOptions{Title: "Salary Slip"})
	if err != nil {
		logger.Error("render salary slip failed", slog.Any("error", err))
		Error(c, http.StatusBadGateway, "failed to render salary slip")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", document.SalarySlipFilename(model.ID)))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

// GET /v1/verify/salary-slips/:code
// 公开接口，供扫描二维码的第三方核验工资单真伪，只返回最少信息。
func (h *SalarySlipHandler) Verify(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		BadRequest(c, "missing verification code")
		return
	}
	var model database.SalarySlip
	if err := h.db.WithContext(c.Request.Context()).Where("verification_code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "salary slip not found")
		} else {
			Internal(c, "failed to query salary slip")
		}
		return
	}
	slip, err := toSlip(model)
	if err != nil {
		Internal(c, "failed to decode salary slip")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":         true,
		"employee_name": slip.EmployeeName,
		"period":        slip.Period,
		"net":           payroll.FormatAmount(slip.Net(), slip.Currency),
	})
}
