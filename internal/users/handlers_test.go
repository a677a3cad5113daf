package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnvelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Pagination *Pagination     `json:"pagination"`
}

func newTestRouter(t *testing.T, service UserService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewUserHandlers(service, zap.NewNop(), PageLimits{DefaultPageSize: 10, MaxPageSize: 50}).RegisterRoutes(router)
	return router
}

func newSQLiteRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestRouter(t, NewUserService(newTestStore(t), time.Second))
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeUsers(t *testing.T, w *httptest.ResponseRecorder) []User {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	var users []User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	return users
}

func createViaAPI(t *testing.T, router http.Handler, body map[string]interface{}) User {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	env := decodeEnvelope(t, w)
	require.True(t, env.Success)
	var user User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	return user
}

func userNames(users []User) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.FirstName
	}
	return names
}

func TestCreateUserHandler(t *testing.T) {
	router := newSQLiteRouter(t)

	t.Run("creates and ignores client id", func(t *testing.T) {
		user := createViaAPI(t, router, map[string]interface{}{
			"id":          999,
			"firstName":   "Ann",
			"lastName":    "Smith",
			"email":       "ann@example.com",
			"phoneNumber": "555-0100",
		})
		assert.NotEqual(t, int64(999), user.ID)
		assert.Equal(t, "Ann", user.FirstName)
		assert.Equal(t, "ann@example.com", user.Email)

		found := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users/search?q=ann@example.com", nil))
		require.Len(t, found, 1)
		assert.Equal(t, user.ID, found[0].ID)
		assert.Equal(t, "555-0100", found[0].PhoneNumber)
	})

	t.Run("missing required field", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/users", map[string]interface{}{"firstName": "NoLast"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "lastName is required", env.Error)
	})

	t.Run("oversized body is 413", func(t *testing.T) {
		limited := gin.New()
		limited.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 16)
			c.Next()
		})
		NewUserHandlers(NewUserService(newTestStore(t), time.Second), zap.NewNop(), PageLimits{}).RegisterRoutes(limited)

		w := doRequest(t, limited, http.MethodPost, "/users", map[string]interface{}{
			"firstName": strings.Repeat("a", 100),
			"lastName":  "Smith",
		})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "request body too large", decodeEnvelope(t, w).Error)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPost, "/users", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, decodeEnvelope(t, w).Success)
	})
}

func TestUpdateUserHandler(t *testing.T) {
	router := newSQLiteRouter(t)
	ann := createViaAPI(t, router, map[string]interface{}{"firstName": "Ann", "lastName": "Smith"})

	t.Run("updates and returns the record", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/users/"+itoa(ann.ID), map[string]interface{}{"middleName": "Marie"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, "User updated successfully", env.Message)
		var user User
		require.NoError(t, json.Unmarshal(env.Data, &user))
		assert.Equal(t, "Marie", user.MiddleName)
		assert.Equal(t, "Smith", user.LastName)
	})

	t.Run("unknown id is 404 and store is unchanged", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/users/12345", map[string]interface{}{"firstName": "Ghost"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "user not found", env.Error)

		all := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users", nil))
		assert.Equal(t, []string{"Ann"}, userNames(all))
	})

	t.Run("bad id", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/users/abc", map[string]interface{}{"firstName": "X"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty update", func(t *testing.T) {
		w := doRequest(t, router, http.MethodPut, "/users/"+itoa(ann.ID), map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteUserHandler(t *testing.T) {
	router := newSQLiteRouter(t)
	ann := createViaAPI(t, router, map[string]interface{}{"firstName": "Ann", "lastName": "Smith"})
	bob := createViaAPI(t, router, map[string]interface{}{"firstName": "Bob", "lastName": "Smith"})

	w := doRequest(t, router, http.MethodDelete, "/users/"+itoa(bob.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())

	// unknown ids are not distinguished
	w = doRequest(t, router, http.MethodDelete, "/users/9999", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/users/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	found := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users/search?q=smith", nil))
	require.Len(t, found, 1)
	assert.Equal(t, ann.ID, found[0].ID)
}

func TestSearchUsersHandler(t *testing.T) {
	router := newSQLiteRouter(t)
	createViaAPI(t, router, map[string]interface{}{"firstName": "Will", "lastName": "Smith"})
	createViaAPI(t, router, map[string]interface{}{"firstName": "Jo", "lastName": "Doe", "address": "12 Smithfield Rd"})
	createViaAPI(t, router, map[string]interface{}{"firstName": "Al", "lastName": "Brown"})

	found := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users/search?q=SMITH", nil))
	assert.Equal(t, []string{"Will", "Jo"}, userNames(found))

	w := doRequest(t, router, http.MethodGet, "/users/search?q=nomatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, w).Data))

	w = doRequest(t, router, http.MethodGet, "/users/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "q is required", decodeEnvelope(t, w).Error)
}

func TestSortUsersHandler(t *testing.T) {
	router := newSQLiteRouter(t)
	createViaAPI(t, router, map[string]interface{}{"firstName": "Ann", "lastName": "Z"})
	bob := createViaAPI(t, router, map[string]interface{}{"firstName": "Bob", "lastName": "Y"})

	sorted := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users/sort?field=firstName&order=DESC", nil))
	assert.Equal(t, []string{"Bob", "Ann"}, userNames(sorted))

	sorted = decodeUsers(t, doRequest(t, router, http.MethodGet, "/users/sort?field=lastName", nil))
	assert.Equal(t, []string{"Bob", "Ann"}, userNames(sorted))

	w := doRequest(t, router, http.MethodDelete, "/users/"+itoa(bob.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	page := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users?page=1&pageSize=10", nil))
	assert.Equal(t, []string{"Ann"}, userNames(page))

	for _, path := range []string{
		"/users/sort",
		"/users/sort?field=first_name",
		"/users/sort?field=firstName;DROP%20TABLE%20users",
		"/users/sort?field=firstName&order=UP",
	} {
		w := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.False(t, decodeEnvelope(t, w).Success, path)
	}
}

func TestListUsersHandler(t *testing.T) {
	router := newSQLiteRouter(t)
	for i := 0; i < 23; i++ {
		createViaAPI(t, router, map[string]interface{}{"firstName": "u" + itoa(int64(i+1)), "lastName": "Test"})
	}

	w := doRequest(t, router, http.MethodGet, "/users?page=2&pageSize=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, Total: 23, TotalPages: 3}, *env.Pagination)

	var users []User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 10)
	assert.Equal(t, "u11", users[0].FirstName)
	assert.Equal(t, "u20", users[9].FirstName)

	// defaults
	env = decodeEnvelope(t, doRequest(t, router, http.MethodGet, "/users", nil))
	assert.Equal(t, 1, env.Pagination.Page)
	assert.Equal(t, 10, env.Pagination.PageSize)

	for _, path := range []string{
		"/users?page=0",
		"/users?page=-1",
		"/users?page=abc",
		"/users?pageSize=0",
		"/users?pageSize=51",
		"/users?page=9223372036854775807&pageSize=2",
	} {
		w := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestHandlersReportTimeouts(t *testing.T) {
	router := newTestRouter(t, NewUserService(&blockingStore{}, 10*time.Millisecond))

	for _, path := range []string{"/users", "/users/search?q=x", "/users/sort?field=id"} {
		w := doRequest(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusGatewayTimeout, w.Code, path)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
		assert.Equal(t, "request timed out", env.Error)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
