package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festpass/internal/metrics"
	"festpass/internal/queue"
	"festpass/internal/student"
)

// Counters register on the default prometheus registry, so the package shares
// one instance across tests.
var testMetrics = metrics.New()

func newTestRouter(feed queue.Queue) (*gin.Engine, *student.MemoryStore) {
	gin.SetMode(gin.TestMode)
	store := student.NewMemoryStore()
	h := New(student.NewService(store), feed, testMetrics)
	r := gin.New()
	h.Register(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registerAnn(t *testing.T, r http.Handler) student.Student {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/students", student.CreateInput{
		Name: "Ann", Email: "a@x.com", Phone: "555", College: "MIT", Role: "participant",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Student student.Student `json:"student"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Student
}

func TestCreateStudentEndpoint(t *testing.T) {
	r, _ := newTestRouter(nil)

	st := registerAnn(t, r)
	assert.NotEmpty(t, st.ID)
	assert.False(t, st.Validated)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/students", student.CreateInput{
			Name: "Ann Again", Email: "a@x.com", Phone: "555", College: "MIT", Role: "participant",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "already exists")
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/students", student.CreateInput{Name: "NoEmail"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad role rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/students", student.CreateInput{
			Name: "Bob", Email: "b@x.com", Phone: "556", College: "MIT", Role: "speaker",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid role")
	})
}

func TestGetStudentEndpoint(t *testing.T) {
	r, _ := newTestRouter(nil)
	st := registerAnn(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/students/"+st.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), st.ID)

	w = doJSON(t, r, http.MethodGet, "/api/students/FEST-0-000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListStudentsEndpoint(t *testing.T) {
	r, _ := newTestRouter(nil)
	st := registerAnn(t, r)

	t.Run("plain list", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/students", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Students []student.Student `json:"students"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Students, 1)
		assert.Equal(t, st.ID, resp.Students[0].ID)
	})

	t.Run("search by substring", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/students?search=mit", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), st.ID)
	})

	t.Run("role filter excludes", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/api/students?role=judge", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"students":[]`)
	})
}

func TestValidateEndpoint(t *testing.T) {
	feed := queue.NewInMemory(8)
	r, _ := newTestRouter(feed)
	st := registerAnn(t, r)

	t.Run("missing id", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Student ID is required")
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": "FEST-0-000"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Student ID not found in the system")
	})

	t.Run("success publishes to the scan feed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": st.ID, "method": "manual"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res student.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "Student validated successfully!", res.Message)
		require.NotNil(t, res.Student)
		assert.True(t, res.Student.Validated)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		msgs, err := feed.Consume(ctx)
		require.NoError(t, err)
		msg := <-msgs
		assert.Equal(t, "scan", msg.Type)
		assert.Contains(t, string(msg.Body), st.ID)
	})

	t.Run("repeat validation fails with record attached", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": st.ID})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var res student.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.False(t, res.Success)
		assert.Equal(t, "Student has already been validated", res.Message)
		require.NotNil(t, res.Student)
	})

	t.Run("bad method rejected", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": st.ID, "method": "fax"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "method must be qr or manual")
	})
}

func TestRecentScansEndpoint(t *testing.T) {
	r, _ := newTestRouter(nil)
	st := registerAnn(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": st.ID, "method": "qr"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/validate/recent?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		RecentScans []student.ScanRecord `json:"recentScans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.RecentScans, 1)
	assert.Equal(t, st.ID, resp.RecentScans[0].StudentID)
	assert.Equal(t, "qr", resp.RecentScans[0].Method)
	assert.Equal(t, st.ID, resp.RecentScans[0].Student.ID)
}

func TestAnalyticsEndpoint(t *testing.T) {
	r, _ := newTestRouter(nil)
	st := registerAnn(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/students", student.CreateInput{
		Name: "Bob", Email: "b@x.com", Phone: "556", College: "Stanford", Role: "volunteer",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/validate", map[string]string{"studentId": st.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Analytics student.Report `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	rep := resp.Analytics
	assert.Equal(t, 2, rep.TotalStudents)
	assert.Equal(t, 1, rep.ValidatedStudents)
	assert.Equal(t, 1, rep.PendingStudents)
	assert.Equal(t, 50, rep.ValidationRate)
	require.Len(t, rep.RoleStats, 2)
	assert.Len(t, rep.TopColleges, 2)
}
