package handlers

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"classgroups-server-go/config"
	"classgroups-server-go/db"
	"classgroups-server-go/models"
	"classgroups-server-go/session"
)

type testServer struct {
	router *gin.Engine
	store  *db.RedisService
	mr     *miniredis.Miniredis
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := db.NewRedisService(client)

	sessions := session.NewRegistry(func() *rand.Rand { return rand.New(rand.NewPCG(7, 8)) })
	grouping := config.GroupingConfig{DefaultSize: 3, DefaultStrategy: "allow-smaller", MaxSize: 20}
	h := NewAPIHandler(store, sessions, nil, grouping)
	return &testServer{router: NewRouter(h, nil), store: store, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedClass creates class C1 with the given student names, IDs S1..Sn.
func (s *testServer) seedClass(t *testing.T, names ...string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/classes", models.NewClass{ID: "C1", Name: "Period 3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for i, n := range names {
		rec := s.do(t, http.MethodPost, "/api/classes/C1/students", models.NewStudent{ID: "S" + string(rune('1'+i)), Name: n})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	wantCode int
}

func TestClassAndStudentRoutes(t *testing.T) {
	s := setup(t)
	s.seedClass(t, "Ana", "Ben", "Cy")

	tests := []httpTest{
		{"list classes", http.MethodGet, "/api/classes", nil, http.StatusOK},
		{"get class", http.MethodGet, "/api/classes/C1", nil, http.StatusOK},
		{"missing class", http.MethodGet, "/api/classes/C9", nil, http.StatusNotFound},
		{"class without name", http.MethodPost, "/api/classes", models.NewClass{ID: "C2"}, http.StatusBadRequest},
		{"students of missing class", http.MethodGet, "/api/classes/C9/students", nil, http.StatusNotFound},
		{"student without name", http.MethodPost, "/api/classes/C1/students", models.NewStudent{}, http.StatusBadRequest},
		{"bulk without names", http.MethodPost, "/api/classes/C1/students/bulk", models.BulkStudents{Text: "\n \n"}, http.StatusBadRequest},
		{"delete unknown student", http.MethodDelete, "/api/classes/C1/students/S9", nil, http.StatusNotFound},
		{"delete unknown class", http.MethodDelete, "/api/classes/C9", nil, http.StatusNotFound},
		{"ping", http.MethodGet, "/api/ping", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("validation errors name the field", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/classes", models.NewClass{ID: "C2"})
		body := decode[map[string]interface{}](t, rec)
		fields, ok := body["fields"].(map[string]interface{})
		require.True(t, ok, rec.Body.String())
		require.Equal(t, "name is required", fields["name"])
	})

	t.Run("bulk add keeps order", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/classes/C1/students/bulk", models.BulkStudents{Text: "Dee\n\n  Eli  \n"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = s.do(t, http.MethodGet, "/api/classes/C1/students", nil)
		students := decode[[]models.Student](t, rec)
		names := make([]string, len(students))
		for i, st := range students {
			names[i] = st.Name
		}
		require.Equal(t, []string{"Ana", "Ben", "Cy", "Dee", "Eli"}, names)
	})

	t.Run("delete class", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/api/classes/C1", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodGet, "/api/classes", nil)
		require.Empty(t, decode[[]models.Clazz](t, rec))
	})
}

func TestPing_StoreDown(t *testing.T) {
	s := setup(t)
	s.mr.Close()

	rec := s.do(t, http.MethodGet, "/api/ping", nil)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestImportStudents(t *testing.T) {
	s := setup(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"ID", "Name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"S1", "Ana"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"S2", "Ben"}))
	var xlsx bytes.Buffer
	require.NoError(t, f.Write(&xlsx))
	require.NoError(t, f.Close())

	rec := uploadRoster(t, s, "C_IMPORT", xlsx.Bytes())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]interface{}](t, rec)
	require.EqualValues(t, 2, resp["importedCount"])

	rec = s.do(t, http.MethodGet, "/api/classes/C_IMPORT/students", nil)
	require.Len(t, decode[[]models.Student](t, rec), 2)

	// the same IDs again are all rejected
	rec = uploadRoster(t, s, "C_OTHER", xlsx.Bytes())
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/api/classes/C_IMPORT/students", nil)
	for _, st := range decode[[]models.Student](t, rec) {
		require.Equal(t, "C_IMPORT", st.ClassID)
	}
}

func uploadRoster(t *testing.T, s *testServer, classID string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("classId", classID))
	part, err := w.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/students", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestImportStudents_BadFile(t *testing.T) {
	s := setup(t)

	rec := uploadRoster(t, s, "C_BAD", []byte("not a workbook"))

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodGet, "/api/classes/C_BAD", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportStudents_MissingClassID(t *testing.T) {
	s := setup(t)
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/students", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
