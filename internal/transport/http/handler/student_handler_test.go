package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"student-records/internal/core/cache"
	"student-records/internal/idseq"
	"student-records/internal/repo"
	"student-records/internal/rule"
	"student-records/internal/service"
	"student-records/internal/testutil"
	resp "student-records/internal/transport/http/response"
	"student-records/internal/transport/http/router"
)

var now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type studentOut struct {
	ID        uint64 `json:"id"`
	StudentID string `json:"studentId"`
	FirstName string `json:"firstName"`
	Status    string `json:"status"`
	Version   int64  `json:"version"`
}

func engines(t *testing.T) (api, admin *gin.Engine) {
	t.Helper()
	db := testutil.DB(t)
	seq := idseq.New(db, zap.NewNop())
	r := repo.NewStudentRepo(db, seq, zap.NewNop())
	o := rule.DefaultOptions()
	o.Now = func() time.Time { return now }
	rules, err := rule.Default(o)
	require.NoError(t, err)
	c := cache.New(cache.NewMemory(), cache.Options{}, zap.NewNop())
	svc := service.NewStudentService(r, rule.NewValidator(r, rules...), service.NewStudentCache(c), seq, zap.NewNop(),
		service.Options{StoreTimeout: 5 * time.Second, Now: func() time.Time { return now }})

	reg := router.NewRegistry(NewStudentHandler(svc))
	opts := router.Options{Mode: gin.TestMode, RPS: 1000, Burst: 1000}
	return router.NewAPIEngine(zap.NewNop(), opts, reg, nil), router.NewAdminEngine(zap.NewNop(), opts, reg, nil)
}

func call(t *testing.T, h http.Handler, method, path string, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "test-rid")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test-rid", w.Header().Get("X-Request-ID"))
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func createBody(mobile string) map[string]any {
	return map[string]any{
		"firstName":   "Asha",
		"lastName":    "Rao",
		"mobile":      mobile,
		"dateOfBirth": "2015-01-10",
		"extra":       map[string]any{"house": "blue"},
	}
}

func TestStudentLifecycleOverHTTP(t *testing.T) {
	api, _ := engines(t)

	env := call(t, api, http.MethodPost, "/api/v1/students", createBody("9876543210"))
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	s := decode[studentOut](t, env.Data)
	assert.Equal(t, "STU-2025-00001", s.StudentID)
	assert.EqualValues(t, 0, s.Version)

	env = call(t, api, http.MethodPost, "/api/v1/students", createBody("9876543210"))
	assert.Equal(t, resp.CodeDuplicateField, env.Code)

	env = call(t, api, http.MethodPatch, "/api/v1/students/1", map[string]any{"firstName": "Meera", "version": 0})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.EqualValues(t, 1, decode[studentOut](t, env.Data).Version)

	env = call(t, api, http.MethodPatch, "/api/v1/students/1", map[string]any{"firstName": "Meera", "version": 0})
	require.Equal(t, resp.CodeVersionConflict, env.Code)
	conflict := decode[map[string]int64](t, env.Data)
	assert.EqualValues(t, 0, conflict["expected"])
	assert.EqualValues(t, 1, conflict["actual"])

	env = call(t, api, http.MethodGet, "/api/v1/students/1", nil)
	require.Equal(t, resp.CodeOK, env.Code)
	got := decode[studentOut](t, env.Data)
	assert.Equal(t, "Meera", got.FirstName)
	assert.EqualValues(t, 1, got.Version)

	env = call(t, api, http.MethodGet, "/api/v1/students/by-sid/STU-2025-00001", nil)
	require.Equal(t, resp.CodeOK, env.Code)
	assert.EqualValues(t, 1, decode[studentOut](t, env.Data).ID)

	env = call(t, api, http.MethodPost, "/api/v1/students/1/status", map[string]any{"status": "GRADUATED", "version": 1})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.Equal(t, "GRADUATED", decode[studentOut](t, env.Data).Status)

	env = call(t, api, http.MethodDelete, "/api/v1/students/1?version=2", nil)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	assert.Equal(t, "INACTIVE", decode[studentOut](t, env.Data).Status)
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	api, _ := engines(t)

	body := createBody("12345")
	body["dateOfBirth"] = "2024-12-01"
	env := call(t, api, http.MethodPost, "/api/v1/students", body)
	require.Equal(t, resp.CodeValidation, env.Code)
	data := decode[struct {
		Violations []struct {
			Rule string `json:"rule"`
		} `json:"violations"`
	}](t, env.Data)
	require.Len(t, data.Violations, 2)
	assert.Equal(t, "mobile_format", data.Violations[0].Rule)
	assert.Equal(t, "age_range", data.Violations[1].Rule)

	body = createBody("9876543210")
	body["dateOfBirth"] = "10/01/2015"
	env = call(t, api, http.MethodPost, "/api/v1/students", body)
	assert.Equal(t, resp.CodeBadRequest, env.Code)
	assert.Contains(t, env.Msg, "datetime")

	env = call(t, api, http.MethodPatch, "/api/v1/students/1", map[string]any{"dateOfBirth": "2015-13-40", "version": 0})
	assert.Equal(t, resp.CodeBadRequest, env.Code)
	assert.Contains(t, env.Msg, "datetime")

	extra := map[string]any{}
	for i := 0; i < 33; i++ {
		extra[fmt.Sprintf("k%d", i)] = i
	}
	body = createBody("9876543210")
	body["extra"] = extra
	env = call(t, api, http.MethodPost, "/api/v1/students", body)
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	env = call(t, api, http.MethodPatch, "/api/v1/students/1", map[string]any{"firstName": "x"})
	assert.Equal(t, resp.CodeBadRequest, env.Code, "version is mandatory")

	env = call(t, api, http.MethodGet, "/api/v1/students/abc", nil)
	assert.Equal(t, resp.CodeBadRequest, env.Code)

	env = call(t, api, http.MethodGet, "/api/v1/students/42", nil)
	assert.Equal(t, resp.CodeNotFound, env.Code)
}

func TestAdminEndpoints(t *testing.T) {
	api, admin := engines(t)
	for _, m := range []string{"9876543210", "9876543211", "9876543212"} {
		env := call(t, api, http.MethodPost, "/api/v1/students", createBody(m))
		require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	}

	env := call(t, admin, http.MethodPost, "/admin/v1/students/2/deactivate", map[string]any{"version": 0})
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)

	env = call(t, admin, http.MethodGet, "/admin/v1/students?status=ACTIVE&limit=10", nil)
	require.Equal(t, resp.CodeOK, env.Code, env.Msg)
	list := decode[struct {
		Total int64        `json:"total"`
		Items []studentOut `json:"items"`
	}](t, env.Data)
	assert.EqualValues(t, 2, list.Total)
	require.Len(t, list.Items, 2)
	assert.EqualValues(t, 3, list.Items[0].ID)

	env = call(t, admin, http.MethodGet, "/admin/v1/sequences/2025", nil)
	require.Equal(t, resp.CodeOK, env.Code)
	seq := decode[sequenceOut](t, env.Data)
	assert.EqualValues(t, 3, seq.LastValue)
	assert.Equal(t, "STU-2025-00004", seq.NextID)
	assert.EqualValues(t, 99996, seq.Remaining)

	env = call(t, admin, http.MethodGet, "/admin/v1/sequences/20x5", nil)
	assert.Equal(t, resp.CodeBadRequest, env.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	_, admin := engines(t)

	w := httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
