package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowhr/internal/auth"
	"workflowhr/internal/database"
	"workflowhr/internal/document"
	"workflowhr/internal/fieldschema"
	"workflowhr/internal/tasks"
)

func offerLetterRequest() map[string]any {
	return map[string]any{
		"document_name": "Offer Letter",
		"field_tags": []fieldschema.FieldTag{
			{Tag: "candidate_name", Label: "Candidate Name"},
			{Tag: "manager", Label: "Manager"},
		},
		"content": "<p>Dear {{candidate_name}}, you will report to {{manager}} from {{start_date}}.</p>",
	}
}

func createTemplate(t *testing.T, env *testEnv, token string) templateResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/templates", token, offerLetterRequest())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[templateResponse](t, w)
}

func TestCreateTemplateRequiresManagerRole(t *testing.T) {
	env := newTestEnv(t)
	employee := env.seedUser(t, "emp", auth.RoleEmployee, nil)

	w := env.do(t, http.MethodPost, "/v1/templates", env.token(t, employee), offerLetterRequest())
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"insufficient role"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/templates", "", nil).Code)
}

func TestCreateTemplateValidation(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)

	w := env.do(t, http.MethodPost, "/v1/templates", env.token(t, hr), map[string]any{
		"document_name": "",
		"content":       "<p>short</p>",
		"field_tags": []fieldschema.FieldTag{
			{Tag: "start_date", Label: "Start Date"},
			{Tag: "start_date", Label: "start date"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error      string                  `json:"error"`
		Violations []fieldschema.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)

	rules := map[fieldschema.Rule]bool{}
	for _, v := range body.Violations {
		rules[v.Rule] = true
	}
	assert.True(t, rules[fieldschema.RuleDocumentName])
	assert.True(t, rules[fieldschema.RuleContentLength])
	assert.True(t, rules[fieldschema.RuleDuplicateTag])
}

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	token := env.token(t, hr)

	created := createTemplate(t, env, token)
	assert.Equal(t, 1, created.Version)
	require.NotNil(t, created.Warnings)
	assert.Equal(t, []string{"start_date"}, created.Warnings.Missing)
	assert.Equal(t, document.DefaultSettings(), created.Settings)

	w := env.do(t, http.MethodGet, "/v1/templates", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Templates []templateListItem `json:"templates"`
	}](t, w)
	require.Len(t, list.Templates, 1)
	assert.Equal(t, "Offer Letter", list.Templates[0].DocumentName)
	assert.Equal(t, 2, list.Templates[0].FieldCount)

	path := fmt.Sprintf("/v1/templates/%d", created.ID)
	update := offerLetterRequest()
	update["document_name"] = "Offer Letter v2"
	update["version"] = 1
	w = env.do(t, http.MethodPut, path, token, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[templateResponse](t, w)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Offer Letter v2", updated.DocumentName)

	// stale version
	w = env.do(t, http.MethodPut, path, token, update)
	assert.Equal(t, http.StatusConflict, w.Code)

	// no version: last write wins
	delete(update, "version")
	update["document_name"] = "Offer Letter v3"
	w = env.do(t, http.MethodPut, path, token, update)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[templateResponse](t, w).Version)

	w = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Offer Letter v3", decode[templateResponse](t, w).DocumentName)

	w = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, env.storage.prefixes, fmt.Sprintf("documents/%d/", created.ID))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, token, nil).Code)
}

func TestUpdateKeepsSettingsWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	token := env.token(t, hr)

	req := offerLetterRequest()
	req["settings"] = document.Settings{FontFamily: "Georgia", FontSizePt: 11, LineHeight: 1.3, MarginMM: 15, ShowPageNumbers: true}
	w := env.do(t, http.MethodPost, "/v1/templates", token, req)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[templateResponse](t, w)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/v1/templates/%d", created.ID), token, offerLetterRequest())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Georgia", decode[templateResponse](t, w).Settings.FontFamily)
}

func TestCreateTemplateSanitizesContent(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)

	req := offerLetterRequest()
	req["content"] = `<p onclick="x()">Dear {{candidate_name}}, welcome aboard.</p><script>alert(1)</script>`
	w := env.do(t, http.MethodPost, "/v1/templates", env.token(t, hr), req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "<p>Dear {{candidate_name}}, welcome aboard.</p>", decode[templateResponse](t, w).Content)
}

func TestTemplatesAreScopedByCompany(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedUser(t, "acme.hr", auth.RoleHR, uintPtr(1))
	globex := env.seedUser(t, "globex.hr", auth.RoleHR, uintPtr(2))

	created := createTemplate(t, env, env.token(t, acme))
	require.NotNil(t, created.CompanyID)
	assert.Equal(t, uint(1), *created.CompanyID)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/templates/%d", created.ID), env.token(t, globex), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := offerLetterRequest()
	req["company_id"] = 1
	w = env.do(t, http.MethodPost, "/v1/templates", env.token(t, globex), req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTemplateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Config.MaxTemplates = 1 })
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	token := env.token(t, hr)

	createTemplate(t, env, token)
	w := env.do(t, http.MethodPost, "/v1/templates", token, offerLetterRequest())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTemplateLimitIsPerCompany(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Config.MaxTemplates = 1 })
	acme := env.seedUser(t, "acme.hr", auth.RoleHR, uintPtr(1))
	globex := env.seedUser(t, "globex.hr", auth.RoleHR, uintPtr(2))

	createTemplate(t, env, env.token(t, acme))
	w := env.do(t, http.MethodPost, "/v1/templates", env.token(t, acme), offerLetterRequest())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/v1/templates", env.token(t, globex), offerLetterRequest())
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestSharedTemplatesAreReadOnlyForCompanyStaff(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin", auth.RoleAdmin, nil)
	globex := env.seedUser(t, "globex.hr", auth.RoleHR, uintPtr(2))

	shared := createTemplate(t, env, env.token(t, admin))
	require.Nil(t, shared.CompanyID)
	path := fmt.Sprintf("/v1/templates/%d", shared.ID)
	token := env.token(t, globex)

	w := env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, path, token, offerLetterRequest())
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPost, path+"/thumbnail", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&database.Template{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	w = env.do(t, http.MethodDelete, path, env.token(t, admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPreviewShowsLabelsForEmptyFields(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	employee := env.seedUser(t, "emp", auth.RoleEmployee, nil)
	created := createTemplate(t, env, env.token(t, hr))

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/templates/%d/preview", created.ID), env.token(t, employee), map[string]any{
		"field_values": map[string]string{"candidate_name": "Jane <Doe>"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[previewResponse](t, w)
	assert.Equal(t, "<p>Dear Jane &lt;Doe&gt;, you will report to [Manager] from {{start_date}}.</p>", resp.Content)
	assert.Contains(t, resp.Page, `id="document-root"`)
	assert.Equal(t, []string{"start_date"}, resp.Warnings.Missing)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	token := env.token(t, hr)
	created := createTemplate(t, env, token)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/templates/%d/export", created.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="Offer_Letter.json"`, w.Header().Get("Content-Disposition"))
	exported := w.Body.Bytes()

	w = env.upload(t, "/v1/templates/import", token, "Offer_Letter.json", exported)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	imported := decode[templateResponse](t, w)
	assert.NotEqual(t, created.ID, imported.ID)
	assert.Equal(t, created.DocumentName, imported.DocumentName)
	assert.Equal(t, created.FieldTags, imported.FieldTags)
	assert.Equal(t, created.Content, imported.Content)
	assert.Equal(t, created.Settings, imported.Settings)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)

	w := env.upload(t, "/v1/templates/import", env.token(t, hr), "broken.json", []byte("not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid template format"}`, w.Body.String())

	var count int64
	require.NoError(t, env.db.Model(&database.Template{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportRejectsInfectedFile(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Scanner = fakeScanner{infected: true} })
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)

	data, err := json.Marshal(offerLetterRequest())
	require.NoError(t, err)
	w := env.upload(t, "/v1/templates/import", env.token(t, hr), "offer.json", data)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"malicious file detected"}`, w.Body.String())
}

func TestEnqueueThumbnail(t *testing.T) {
	env := newTestEnv(t)
	hr := env.seedUser(t, "hr", auth.RoleHR, nil)
	token := env.token(t, hr)
	created := createTemplate(t, env, token)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/templates/%d/thumbnail", created.ID), token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, tasks.TypeTemplateThumbnail, env.queue.tasks[0].Type())

	var payload tasks.TemplateThumbnailPayload
	require.NoError(t, json.Unmarshal(env.queue.tasks[0].Payload(), &payload))
	assert.Equal(t, created.ID, payload.TemplateID)
	assert.Equal(t, hr.ID, payload.UserID)
	assert.NotEmpty(t, payload.CorrelationID)
}

func TestListThemes(t *testing.T) {
	env := newTestEnv(t)
	employee := env.seedUser(t, "emp", auth.RoleEmployee, nil)

	w := env.do(t, http.MethodGet, "/v1/themes", env.token(t, employee), nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Themes []themeResponse `json:"themes"`
	}](t, w)
	require.Len(t, resp.Themes, 10)
	assert.Equal(t, "Offer Letter", resp.Themes[0].Name)
	assert.NotEmpty(t, resp.Themes[0].SuggestedFields)
}
