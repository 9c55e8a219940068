package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"realtime-chat/backend/internal/broadcast"
	"realtime-chat/backend/internal/models"
	"realtime-chat/backend/internal/repository"
	"realtime-chat/backend/internal/service"
	"realtime-chat/backend/internal/testutil"
	apperrors "realtime-chat/backend/pkg/errors"
	"realtime-chat/backend/pkg/jwt"
	"realtime-chat/backend/pkg/logger"
	"realtime-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const cookieName = "chat_session"

type published struct {
	author models.Author
	msg    models.Message
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, author models.Author, msg *models.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{author: author, msg: *msg})
	return nil
}

func (p *recordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type testApp struct {
	engine    *gin.Engine
	db        *gorm.DB
	users     *service.UserService
	publisher *recordingPublisher
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	userRepo := repository.NewGormUserRepository(db)
	users := service.NewUserService(userRepo, jwt.NewService("test-secret", time.Hour))
	chat := service.NewChatService(repository.NewGormMessageRepository(db), userRepo, logger.Discard())
	publisher := &recordingPublisher{}
	notifier := broadcast.NewNotifier(publisher, time.Second, logger.Discard())

	authHandler := NewAuthHandler(users, SessionCookie{Name: cookieName, MaxAge: 3600}, logger.Discard())
	chatHandler := NewChatHandler(chat, notifier, ChatLimits{Recent: 50, MaxRecent: 200})

	engine := gin.New()
	engine.LoadHTMLGlob("../../web/templates/*.tmpl")
	engine.Use(apperrors.ErrorHandler())
	engine.Use(middleware.SessionAuth(users, cookieName))

	guest := middleware.RedirectIfAuthenticated("/chat")
	engine.GET("/", chatHandler.Index)
	engine.GET("/register", guest, authHandler.ShowRegister)
	engine.POST("/register", guest, authHandler.Register)
	engine.GET("/login", guest, authHandler.ShowLogin)
	engine.POST("/login", guest, authHandler.Login)
	engine.POST("/logout", authHandler.Logout)
	engine.GET("/chat", middleware.RequirePageAuth("/login"), chatHandler.Page)
	engine.POST("/chat/send", middleware.RequireAuth(), chatHandler.Send)

	v1 := engine.Group("/api/v1")
	v1.POST("/auth/register", authHandler.APIRegister)
	v1.POST("/auth/login", authHandler.APILogin)
	v1.GET("/auth/me", middleware.RequireAuth(), authHandler.Me)
	v1.GET("/messages", middleware.RequireAuth(), chatHandler.List)
	v1.POST("/messages", middleware.RequireAuth(), chatHandler.Create)

	return &testApp{engine: engine, db: db, users: users, publisher: publisher}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) session(t *testing.T, name string) (*models.User, string) {
	t.Helper()
	user, token, err := a.users.Register(context.Background(), &models.RegisterRequest{
		Name:                 name,
		Email:                name + "@example.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	})
	require.NoError(t, err)
	return user, token
}

func (a *testApp) messageCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, a.db.Model(&models.Message{}).Count(&count).Error)
	return count
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, path, body, token string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func withCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	return req
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestRegisterPage(t *testing.T) {
	app := newTestApp(t)

	t.Run("form renders", func(t *testing.T) {
		w := app.do(httptest.NewRequest(http.MethodGet, "/register", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `name="password_confirmation"`)
	})

	t.Run("success opens a session", func(t *testing.T) {
		w := app.do(formRequest("/register", url.Values{
			"name":                  {"Alice"},
			"email":                 {"alice@example.com"},
			"password":              {"secret123"},
			"password_confirmation": {"secret123"},
		}))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/chat", w.Header().Get("Location"))

		cookie := sessionCookie(w)
		require.NotNil(t, cookie)
		assert.NotEmpty(t, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("duplicate email is a field error", func(t *testing.T) {
		w := app.do(formRequest("/register", url.Values{
			"name":                  {"Impostor"},
			"email":                 {"ALICE@example.com"},
			"password":              {"secret123"},
			"password_confirmation": {"secret123"},
		}))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "The email has already been taken.")
		assert.Contains(t, w.Body.String(), `value="Impostor"`)
		assert.Nil(t, sessionCookie(w))
	})
}

func TestLoginPage(t *testing.T) {
	app := newTestApp(t)
	app.session(t, "alice")

	t.Run("valid credentials", func(t *testing.T) {
		w := app.do(formRequest("/login", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}}))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/chat", w.Header().Get("Location"))
		assert.NotNil(t, sessionCookie(w))
	})

	t.Run("wrong password", func(t *testing.T) {
		w := app.do(formRequest("/login", url.Values{"email": {"alice@example.com"}, "password": {"wrong"}}))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid credentials.")
		assert.Nil(t, sessionCookie(w))
	})

	t.Run("signed in users skip the form", func(t *testing.T) {
		_, token := app.session(t, "bob")
		w := app.do(withCookie(httptest.NewRequest(http.MethodGet, "/login", nil), token))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/chat", w.Header().Get("Location"))
	})
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	_, token := app.session(t, "alice")

	w := app.do(withCookie(httptest.NewRequest(http.MethodPost, "/logout", nil), token))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestChatPage(t *testing.T) {
	app := newTestApp(t)
	alice, aliceToken := app.session(t, "alice")
	bob, _ := app.session(t, "bob")

	w := app.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	require.NoError(t, app.db.Create(&models.Message{UserID: alice.ID, Body: "hello from alice"}).Error)
	require.NoError(t, app.db.Create(&models.Message{UserID: bob.ID, Body: "<b>hi</b>"}).Error)

	w = app.do(withCookie(httptest.NewRequest(http.MethodGet, "/chat", nil), aliceToken))
	require.Equal(t, http.StatusOK, w.Code)

	page := w.Body.String()
	assert.Contains(t, page, "hello from alice")
	assert.Contains(t, page, "&lt;b&gt;hi&lt;/b&gt;", "bodies are escaped")
	assert.Less(t, strings.Index(page, "hello from alice"), strings.Index(page, "&lt;b&gt;hi"), "oldest first")
	assert.Contains(t, page, `class="message mine"`)
}

func TestIndexRedirects(t *testing.T) {
	app := newTestApp(t)
	w := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/chat", w.Header().Get("Location"))
}

func TestSendMessage(t *testing.T) {
	app := newTestApp(t)
	alice, token := app.session(t, "alice")

	t.Run("stores and broadcasts", func(t *testing.T) {
		w := app.do(withCookie(formRequest("/chat/send", url.Values{"message": {"  hello everyone  "}}), token))
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SendMessageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Message sent!", resp.Status)
		require.NotNil(t, resp.Message)
		assert.Equal(t, "hello everyone", resp.Message.Body)

		events := app.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, models.Author{ID: alice.ID, Name: "alice"}, events[0].author)
		assert.Equal(t, resp.Message.ID, events[0].msg.ID)
	})

	t.Run("json body", func(t *testing.T) {
		req := withCookie(jsonRequest(http.MethodPost, "/chat/send", `{"message":"via fetch"}`, ""), token)
		w := app.do(req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, app.publisher.Events(), 2)
	})

	t.Run("empty message", func(t *testing.T) {
		before := app.messageCount(t)
		w := app.do(withCookie(formRequest("/chat/send", url.Values{"message": {"   "}}), token))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		body := errorBody(t, w)
		assert.Equal(t, "message", body["field"])
		assert.Equal(t, "message required", body["message"])
		assert.Equal(t, before, app.messageCount(t))
		assert.Len(t, app.publisher.Events(), 2)
	})

	t.Run("too long", func(t *testing.T) {
		w := app.do(withCookie(formRequest("/chat/send", url.Values{"message": {strings.Repeat("x", 1001)}}), token))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "message too long", errorBody(t, w)["message"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		before := app.messageCount(t)
		w := app.do(formRequest("/chat/send", url.Values{"message": {"sneaky"}}))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperrors.CodeAuthRequired, errorBody(t, w)["code"])
		assert.Equal(t, before, app.messageCount(t))
	})
}

func TestSendMessageSurvivesBroadcastFailure(t *testing.T) {
	app := newTestApp(t)
	_, token := app.session(t, "alice")
	app.publisher.err = errors.New("redis down")

	w := app.do(withCookie(formRequest("/chat/send", url.Values{"message": {"still here"}}), token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, app.messageCount(t))
}

func TestAPIAuthFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.do(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Alice","email":"alice@example.com","password":"secret123","password_confirmation":"secret123"}`, ""))
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"secret123"}`, ""))
	require.Equal(t, http.StatusOK, w.Code)

	var login struct {
		Token string              `json:"token"`
		User  models.UserResponse `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	w = app.do(jsonRequest(http.MethodGet, "/api/v1/auth/me", "", login.Token))
	require.Equal(t, http.StatusOK, w.Code)
	var me models.UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, login.User.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)

	t.Run("bad credentials", func(t *testing.T) {
		w := app.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"alice@example.com","password":"nope"}`, ""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperrors.CodeInvalidCredentials, errorBody(t, w)["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := app.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":`, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.CodeInvalidRequest, errorBody(t, w)["code"])
	})

	t.Run("bad bearer token", func(t *testing.T) {
		w := app.do(jsonRequest(http.MethodGet, "/api/v1/auth/me", "", "not-a-token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperrors.CodeInvalidToken, errorBody(t, w)["code"])
	})
}

func TestMessagesAPI(t *testing.T) {
	app := newTestApp(t)
	_, token := app.session(t, "alice")

	for _, body := range []string{"one", "two", "three"} {
		w := app.do(jsonRequest(http.MethodPost, "/api/v1/messages", `{"message":"`+body+`"}`, token))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	list := func(query string) []models.Message {
		t.Helper()
		w := app.do(jsonRequest(http.MethodGet, "/api/v1/messages"+query, "", token))
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Messages []models.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Messages
	}

	all := list("")
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Body)
	require.NotNil(t, all[0].Author)
	assert.Equal(t, "alice", all[0].Author.Name)

	last := list("?limit=2")
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Body)
	assert.Equal(t, "three", last[1].Body)

	assert.Len(t, list("?limit=0"), 1, "limit is clamped to at least one")

	w := app.do(jsonRequest(http.MethodGet, "/api/v1/messages?limit=abc", "", token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "limit", errorBody(t, w)["field"])
}
