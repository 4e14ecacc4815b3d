// Package apitest provides an in-memory stand-in for the task backend,
// mirroring the REST contract the client consumes. Tests drive it through
// httptest and the exported knobs.
package apitest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/existflow/taskpilot/internal/model"
)

type userRecord struct {
	user     model.User
	password string
}

type chatRecord struct {
	id           int64
	isAIResponse bool
	content      string
	createdAt    time.Time
}

// Server is the fake backend
type Server struct {
	mu sync.Mutex

	echo *echo.Echo
	ts   *httptest.Server

	users      map[string]*userRecord // by email
	tokens     map[string]string      // token -> email
	expired    map[string]bool        // tokens rejected by the auth check
	tasks      []*model.Task
	categories []*model.Category
	chat       []chatRecord
	nextID     int64

	// Knobs
	rejectAll     bool     // every authenticated call fails auth, even fresh tokens
	failRefresh   bool     // refresh endpoint rejects
	authAs500     bool     // report auth failures as 500 "Unauthenticated."
	streamChunks  []string // when set, /ai/chat answers with an event stream
	chatResponse  string
	chatActions   []map[string]any
	refreshCalls  int
	requestCounts map[string]int
}

// New starts a fake backend; callers must Close it
func New() *Server {
	s := &Server{
		users:         make(map[string]*userRecord),
		tokens:        make(map[string]string),
		expired:       make(map[string]bool),
		chatResponse:  "Hello! How can I help with your tasks?",
		requestCounts: make(map[string]int),
	}
	s.setupEcho()
	s.ts = httptest.NewServer(s.echo)
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true

	e.POST("/auth/login", s.handleLogin)
	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/refresh", s.handleRefresh)
	e.POST("/auth/forgot-password", s.handleForgotPassword)
	e.POST("/auth/reset-password", s.handleResetPassword)

	protected := e.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/auth/me", s.handleMe)
	protected.POST("/auth/logout", s.handleLogout)
	protected.POST("/auth/change-password", s.handleChangePassword)

	protected.GET("/tasks", s.handleListTasks)
	protected.GET("/tasks/archived", s.handleListArchived)
	protected.POST("/tasks", s.handleCreateTask)
	protected.PUT("/tasks/:id", s.handleUpdateTask)
	protected.DELETE("/tasks/:id", s.handleDeleteTask)

	protected.GET("/categories", s.handleListCategories)
	protected.POST("/categories", s.handleCreateCategory)
	protected.PUT("/categories/:id", s.handleUpdateCategory)
	protected.DELETE("/categories/:id", s.handleDeleteCategory)

	protected.POST("/ai/chat", s.handleChat)
	protected.GET("/ai/messages", s.handleChatHistory)
	protected.DELETE("/ai/conversations", s.handleClearChat)

	s.echo = e
}

// URL returns the backend base URL
func (s *Server) URL() string {
	return s.ts.URL
}

// Close shuts the backend down
func (s *Server) Close() {
	s.ts.Close()
}

// --- knobs and helpers ---

// SeedUser registers an account directly and returns the record
func (s *Server) SeedUser(name, email, password string, roles []string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := model.User{
		ID:        s.nextID,
		Email:     email,
		Name:      name,
		Roles:     roles,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.users[email] = &userRecord{user: u, password: password}
	return u
}

// IssueToken mints a valid token for a seeded user
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(email)
}

func (s *Server) issueTokenLocked(email string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	token := hex.EncodeToString(b)
	s.tokens[token] = email
	return token
}

// SeedTask inserts a task directly; id and timestamps are assigned
func (s *Server) SeedTask(t model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	s.tasks = append(s.tasks, &t)
	return t
}

// SeedCategory inserts a category directly
func (s *Server) SeedCategory(c model.Category) model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	s.categories = append(s.categories, &c)
	return c
}

// ExpireTokens invalidates every outstanding token so the next
// authenticated call fails; a successful refresh mints a fresh one.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token := range s.tokens {
		s.expired[token] = true
	}
}

// SetRejectAll makes every authenticated call fail auth, fresh tokens included
func (s *Server) SetRejectAll(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = v
}

// SetFailRefresh makes the refresh endpoint reject
func (s *Server) SetFailRefresh(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = v
}

// SetAuthAs500 reports auth failures as 500 "Unauthenticated." instead of 401
func (s *Server) SetAuthAs500(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authAs500 = v
}

// SetStream makes /ai/chat answer with an event stream of the given chunks
func (s *Server) SetStream(chunks []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamChunks = chunks
}

// SetChatResponse sets the plain JSON chat reply and performed actions
func (s *Server) SetChatResponse(response string, actions []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatResponse = response
	s.chatActions = actions
}

// RefreshCalls returns how many times /auth/refresh was hit
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// Requests returns how many times the given "METHOD /path" was served
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCounts[key]
}

// Task returns a copy of the stored task by id
func (s *Server) Task(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return *t, true
		}
	}
	return model.Task{}, false
}

// --- middleware ---

func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.requestCounts[c.Request().Method+" "+c.Path()]++

		auth := c.Request().Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		email, known := s.tokens[token]
		failed := auth == "" || token == auth || !known || s.expired[token] || s.rejectAll
		as500 := s.authAs500
		s.mu.Unlock()

		if failed {
			if as500 {
				return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Unauthenticated."})
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
		}

		c.Set("email", email)
		return next(c)
	}
}

// --- auth handlers ---

func (s *Server) handleLogin(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[req.Email]
	if !ok || rec.password != req.Password {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	}

	token := s.issueTokenLocked(req.Email)
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) handleRegister(c echo.Context) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	if req.Email == "" || req.Password == "" {
		// Field errors deliberately mix bare-string and array shapes,
		// matching the backend's inconsistency.
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors": map[string]any{
				"email":    "The email field is required.",
				"password": []string{"The password field is required."},
			},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string]any{"email": []string{"The email has already been taken."}},
		})
	}

	s.nextID++
	s.users[req.Email] = &userRecord{
		user: model.User{
			ID:        s.nextID,
			Email:     req.Email,
			Name:      req.Name,
			Roles:     []string{"user"},
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		password: req.Password,
	}

	token := s.issueTokenLocked(req.Email)
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) handleRefresh(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++

	email, known := s.tokens[token]
	if s.failRefresh || !known {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthenticated."})
	}

	delete(s.tokens, token)
	delete(s.expired, token)
	fresh := s.issueTokenLocked(email)
	return c.JSON(http.StatusOK, map[string]string{"access_token": fresh})
}

func (s *Server) handleMe(c echo.Context) error {
	email := c.Get("email").(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[email]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "user not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"data": rec.user})
}

func (s *Server) handleLogout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleForgotPassword(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Reset link sent"})
}

func (s *Server) handleResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string]any{"token": []string{"The token field is required."}},
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset"})
}

func (s *Server) handleChangePassword(c echo.Context) error {
	email := c.Get("email").(string)
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.users[email]
	if rec.password != req.CurrentPassword {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "Current password is incorrect",
			"errors":  map[string]any{"current_password": []string{"Current password is incorrect"}},
		})
	}
	rec.password = req.NewPassword
	return c.JSON(http.StatusOK, map[string]string{"message": "Password changed"})
}

// --- task handlers ---

func (s *Server) handleListTasks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := c.QueryParam("status")
	priority := c.QueryParam("priority")
	categoryID := c.QueryParam("category_id")

	out := []model.Task{}
	for _, t := range s.tasks {
		if t.Status == model.StatusArchived {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		if categoryID != "" {
			id, _ := strconv.ParseInt(categoryID, 10, 64)
			if t.CategoryID == nil || *t.CategoryID != id {
				continue
			}
		}
		out = append(out, *t)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleListArchived(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Task{}
	for _, t := range s.tasks {
		if t.Status == model.StatusArchived {
			out = append(out, *t)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req struct {
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Notes       string         `json:"notes"`
		Priority    model.Priority `json:"priority"`
		CategoryID  *int64         `json:"category_id"`
		DueDate     *time.Time     `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string]any{"title": []string{"The title field is required."}},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &model.Task{
		ID:          s.nextID,
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Priority:    req.Priority,
		Status:      model.StatusTodo,
		CategoryID:  req.CategoryID,
		DueDate:     req.DueDate,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.tasks = append(s.tasks, t)
	return c.JSON(http.StatusCreated, map[string]any{"data": *t})
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	var req struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Notes       *string         `json:"notes"`
		Priority    *model.Priority `json:"priority"`
		Status      *model.Status   `json:"status"`
		CategoryID  *int64          `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var t *model.Task
	for _, candidate := range s.tasks {
		if candidate.ID == id {
			t = candidate
			break
		}
	}
	if t == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Task not found"})
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Notes != nil {
		t.Notes = *req.Notes
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.CategoryID != nil {
		t.CategoryID = req.CategoryID
	}
	if req.Status != nil && *req.Status != t.Status {
		if *req.Status == model.StatusArchived {
			// Record the prior status before overwriting it
			prev := t.Status
			t.PreviousStatus = &prev
		} else {
			t.PreviousStatus = nil
		}
		t.Status = *req.Status
	}
	t.UpdatedAt = time.Now()

	return c.JSON(http.StatusOK, map[string]any{"data": *t})
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Task not found"})
}

// --- category handlers ---

func (s *Server) handleListCategories(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Category{}
	for _, cat := range s.categories {
		out = append(out, *cat)
	}
	return c.JSON(http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleCreateCategory(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string]any{"name": []string{"The name field is required."}},
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	color := req.Color
	if color == "" {
		color = "#4ECDC4"
	}
	cat := &model.Category{
		ID:          s.nextID,
		Name:        req.Name,
		Description: req.Description,
		Color:       color,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	s.categories = append(s.categories, cat)
	return c.JSON(http.StatusCreated, map[string]any{"data": *cat})
}

func (s *Server) handleUpdateCategory(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cat := range s.categories {
		if cat.ID == id {
			if req.Name != nil {
				cat.Name = *req.Name
			}
			if req.Description != nil {
				cat.Description = *req.Description
			}
			if req.Color != nil {
				cat.Color = *req.Color
			}
			cat.UpdatedAt = time.Now()
			return c.JSON(http.StatusOK, map[string]any{"data": *cat})
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Category not found"})
}

func (s *Server) handleDeleteCategory(c echo.Context) error {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cat := range s.categories {
		if cat.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return c.NoContent(http.StatusNoContent)
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "Category not found"})
}

// --- assistant handlers ---

func (s *Server) handleChat(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request"})
	}

	s.mu.Lock()
	s.nextID++
	s.chat = append(s.chat, chatRecord{id: s.nextID, content: req.Message, createdAt: time.Now()})
	chunks := s.streamChunks
	response := s.chatResponse
	actions := s.chatActions
	s.mu.Unlock()

	if len(chunks) > 0 {
		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.WriteHeader(http.StatusOK)

		full := ""
		for _, chunk := range chunks {
			full += chunk
			data, _ := json.Marshal(map[string]string{"chunk": chunk})
			fmt.Fprintf(res, "data: %s\n\n", data)
			res.Flush()
		}
		fmt.Fprint(res, "data: [DONE]\n\n")
		res.Flush()

		s.mu.Lock()
		s.nextID++
		s.chat = append(s.chat, chatRecord{id: s.nextID, isAIResponse: true, content: full, createdAt: time.Now()})
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.nextID++
	s.chat = append(s.chat, chatRecord{id: s.nextID, isAIResponse: true, content: response, createdAt: time.Now()})
	s.mu.Unlock()

	out := map[string]any{"response": response}
	if len(actions) > 0 {
		out["actions_performed"] = actions
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleChatHistory(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]map[string]any, 0, len(s.chat))
	for _, m := range s.chat {
		messages = append(messages, map[string]any{
			"id":             m.id,
			"is_ai_response": m.isAIResponse,
			"content":        m.content,
			"created_at":     m.createdAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "messages": messages})
}

func (s *Server) handleClearChat(c echo.Context) error {
	s.mu.Lock()
	s.chat = nil
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
