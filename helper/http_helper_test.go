package helper

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"consultancy-cms/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestGetStatusCode(t *testing.T) {
	h := NewHTTPHelper()
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{models.ErrorUnauthenticated{}, http.StatusUnauthorized},
		{models.ErrorForbidden{}, http.StatusForbidden},
		{models.ErrorNotFound{Entity: "comment"}, http.StatusNotFound},
		{fmt.Errorf("update: %w", models.ErrorConflict{Message: "changed"}), http.StatusConflict},
		{models.ErrorValidation{Field: "email"}, http.StatusUnprocessableEntity},
		{models.ErrorInvalidReference{Field: "postId"}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, h.GetStatusCode(tc.err), "%v", tc.err)
	}
}

func TestSendServiceError_Envelope(t *testing.T) {
	h := NewHTTPHelper()

	c, w := testContext(http.MethodGet, "/", "")
	_ = h.SendServiceError(c, models.ErrorForbidden{Message: "administrator access required"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode(t, w)
	assert.Equal(t, "forbidden", body["code_type"])
	assert.Equal(t, "administrator access required", body["code_message"])
	assert.Contains(t, body, "data")

	c, w = testContext(http.MethodGet, "/", "")
	_ = h.SendServiceError(c, models.ErrorUnauthenticated{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "please sign in", decode(t, w)["code_message"])

	c, w = testContext(http.MethodGet, "/", "")
	_ = h.SendServiceError(c, errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["code_message"])
}

func TestSendServiceError_NamesField(t *testing.T) {
	h := NewHTTPHelper()
	c, w := testContext(http.MethodPost, "/", "")

	_ = h.SendServiceError(c, models.ErrorInvalidReference{Field: "parentId", Message: "must be a top-level comment on the same post"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "invalidReference", body["code_type"])
	msgs, ok := body["code_message"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, msgs, "parent_id")
}

type bindTarget struct {
	Email  string `json:"email" validate:"required,email"`
	PostID string `json:"post_id" validate:"required"`
}

func TestBindJSON(t *testing.T) {
	h := NewHTTPHelper()

	c, _ := testContext(http.MethodPost, "/", `{"email":"a@example.com","post_id":"p1"}`)
	var ok bindTarget
	assert.True(t, h.BindJSON(c, &ok))
	assert.Equal(t, "p1", ok.PostID)

	c, w := testContext(http.MethodPost, "/", `{"email":"nope"}`)
	var bad bindTarget
	assert.False(t, h.BindJSON(c, &bad))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	msgs := decode(t, w)["code_message"].(map[string]any)
	assert.Contains(t, msgs, "email")
	assert.Contains(t, msgs, "post_id")

	c, w = testContext(http.MethodPost, "/", `{not json`)
	assert.False(t, h.BindJSON(c, &bad))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGeneratePaging(t *testing.T) {
	h := NewHTTPHelper()
	c, _ := testContext(http.MethodGet, "/api/v1/admin/comments?status=PENDING", "")

	paging := h.GeneratePaging(c, 10, 2, 35)
	assert.Equal(t, 4, paging["total_pages"])
	links := paging["links"].(map[string]interface{})
	assert.Contains(t, links["next"], "page=3")
	assert.Contains(t, links["previous"], "page=1")
	assert.Contains(t, links["next"], "status=PENDING")
	assert.Contains(t, links["last"], "page=4")

	empty := h.GeneratePaging(c, 10, 1, 0)
	assert.Equal(t, 0, empty["total_pages"])
	assert.Equal(t, "", empty["links"].(map[string]interface{})["next"])
}

func TestUnderscore(t *testing.T) {
	cases := map[string]string{
		"PostID":    "post_id",
		"parentId":  "parent_id",
		"email":     "email",
		"user_ids":  "user_ids",
		"GuestName": "guest_name",
	}
	for in, want := range cases {
		assert.Equal(t, want, Underscore(in), in)
	}
}
