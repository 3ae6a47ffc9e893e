package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"contacts_service/internal/auth"
	"contacts_service/internal/contacts"
	"contacts_service/internal/lib/hasher"
	"contacts_service/internal/lib/jwt"
	"contacts_service/internal/lib/validation"
	"contacts_service/internal/models"
	"contacts_service/internal/storage"
	redisstore "contacts_service/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memDB mimics the users/contacts tables, including UNIQUE(username) and
// owner-filtered UPDATE/DELETE ... RETURNING.
type memDB struct {
	mu        sync.Mutex
	userSeq   int64
	users     map[string]models.User
	contactID int64
	contacts  map[int64]models.Contact
}

func newMemDB() *memDB {
	return &memDB{
		users:    make(map[string]models.User),
		contacts: make(map[int64]models.Contact),
	}
}

func (m *memDB) SaveUser(_ context.Context, username string, passHash []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; ok {
		return 0, storage.ErrUserExists
	}
	m.userSeq++
	m.users[username] = models.User{ID: m.userSeq, Username: username, PassHash: passHash}

	return m.userSeq, nil
}

func (m *memDB) User(_ context.Context, username string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[username]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func (m *memDB) UserByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (m *memDB) SaveContact(_ context.Context, userID int64, name, phone string) (models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.contactID++
	c := models.Contact{ID: m.contactID, UserID: userID, Name: name, Phone: phone}
	m.contacts[c.ID] = c

	return c, nil
}

func (m *memDB) Contacts(_ context.Context, userID int64) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]models.Contact, 0)
	for id := int64(1); id <= m.contactID; id++ {
		if c, ok := m.contacts[id]; ok && c.UserID == userID {
			res = append(res, c)
		}
	}

	return res, nil
}

func (m *memDB) UpdateContact(_ context.Context, userID, id int64, name, phone string) (models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return models.Contact{}, storage.ErrContactNotFound
	}
	c.Name, c.Phone = name, phone
	m.contacts[id] = c

	return c, nil
}

func (m *memDB) DeleteContact(_ context.Context, userID, id int64) (models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return models.Contact{}, storage.ErrContactNotFound
	}
	delete(m.contacts, id)

	return c, nil
}

type testServer struct {
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	db := newMemDB()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	authService := auth.New(
		log,
		db,
		db,
		redisstore.NewWithClient(client),
		hasher.New(bcrypt.MinCost),
		jwt.New("test-secret", time.Hour),
		auth.WithRefreshGrace(24*time.Hour),
	)

	return &testServer{
		handler: New(log, validation.New(), authService, contacts.New(log, db), opts),
		redis:   mr,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())

	return w.Code, env
}

type loginData struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *testServer) registerAndLogin(t *testing.T, username, password string) loginData {
	t.Helper()

	creds := map[string]string{"username": username, "password": password}

	code, _ := s.do(t, http.MethodPost, "/users", "", creds)
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/users/login", "", creds)
	require.Equal(t, http.StatusOK, code)

	var data loginData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)

	return data
}

func (s *testServer) createContact(t *testing.T, token, name, phone string) models.Contact {
	t.Helper()

	code, env := s.do(t, http.MethodPost, "/contacts", token, map[string]string{"name": name, "phone": phone})
	require.Equal(t, http.StatusCreated, code, "error: %s", env.Error)

	var data struct {
		Contact models.Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	return data.Contact
}

func messages(t *testing.T, env envelope) []string {
	t.Helper()

	var msgs []string
	require.NoError(t, json.Unmarshal(env.Data, &msgs))

	return msgs
}

func containsField(msgs []string, field string) bool {
	for _, m := range msgs {
		if strings.Contains(m, field) {
			return true
		}
	}

	return false
}

func TestRegisterLoginCreateContact(t *testing.T) {
	s := newTestServer(t, Options{})

	user := s.registerAndLogin(t, "testuser", "password123")
	assert.Equal(t, "testuser", user.User.Username)

	code, env := s.do(t, http.MethodPost, "/contacts", user.Token, map[string]string{
		"name":  "João Silva",
		"phone": "(11)99999-9999",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	var data struct {
		Contact models.Contact `json:"contact"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, user.User.ID, data.Contact.UserID)
	assert.Equal(t, "João Silva", data.Contact.Name)
	assert.Equal(t, "(11)99999-9999", data.Contact.Phone)
	assert.NotZero(t, data.Contact.ID)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	s := newTestServer(t, Options{})
	creds := map[string]string{"username": "testuser", "password": "password123"}

	code, env := s.do(t, http.MethodPost, "/users", "", creds)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)

	code, env = s.do(t, http.MethodPost, "/users", "", creds)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Username already taken", env.Error)
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodPost, "/users", "", map[string]string{"username": "ab", "password": "123"})
	require.Equal(t, http.StatusBadRequest, code)

	msgs := messages(t, env)
	assert.True(t, containsField(msgs, "username"))
	assert.True(t, containsField(msgs, "password"))

	code, env = s.do(t, http.MethodPost, "/users", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Len(t, messages(t, env), 2)
}

func TestRegister_MultibytePasswordLength(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodPost, "/users", "", map[string]string{
		"username": "testuser",
		"password": strings.Repeat("é", 40),
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", env.Error)
	assert.True(t, containsField(messages(t, env), "password"))

	creds := map[string]string{"username": "testuser", "password": strings.Repeat("é", 36)}

	code, _ = s.do(t, http.MethodPost, "/users", "", creds)
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPost, "/users/login", "", creds)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(t, Options{})
	s.registerAndLogin(t, "testuser", "password123")

	code, wrongPass := s.do(t, http.MethodPost, "/users/login", "", map[string]string{"username": "testuser", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, noUser := s.do(t, http.MethodPost, "/users/login", "", map[string]string{"username": "ghost", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Equal(t, wrongPass, noUser)
}

func TestLogin_Validation(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodPost, "/users/login", "", map[string]string{"username": "testuser"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, containsField(messages(t, env), "password"))
}

func TestCreateContact_ShortName(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	code, env := s.do(t, http.MethodPost, "/contacts", user.Token, map[string]string{
		"name":  "J",
		"phone": "(11)99999-9999",
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation failed", env.Error)
	assert.True(t, containsField(messages(t, env), "name"))
}

func TestCreateContact_PhoneFormats(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	for _, phone := range []string{"(11)99999-9999", "1199999-9999", "(11)9999-9999", "119999-9999", "11999999999"} {
		s.createContact(t, user.Token, "João Silva", phone)
	}

	for _, phone := range []string{"123", "(11)999-9999", "abc", "(1)99999-9999"} {
		code, env := s.do(t, http.MethodPost, "/contacts", user.Token, map[string]string{"name": "João Silva", "phone": phone})
		assert.Equal(t, http.StatusBadRequest, code, "phone %q", phone)
		assert.True(t, containsField(messages(t, env), "phone"), "phone %q", phone)
	}
}

func TestContacts_RequireAuth(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodPost, "/contacts", "", map[string]string{"name": "João Silva", "phone": "(11)99999-9999"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = s.do(t, http.MethodGet, "/contacts", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	forged, err := jwt.New("other-secret", time.Hour).NewToken(models.User{ID: 1, Username: "testuser"})
	require.NoError(t, err)

	code, _ = s.do(t, http.MethodGet, "/contacts", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestContacts_ListUpdateDelete(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	first := s.createContact(t, user.Token, "Ana", "1199999-9999")
	s.createContact(t, user.Token, "Bia", "(11)9999-9999")

	code, env := s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	require.Equal(t, http.StatusOK, code)

	var list []models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)

	code, env = s.do(t, http.MethodPut, fmt.Sprintf("/contacts/%d", first.ID), user.Token, map[string]string{
		"name":  "Ana Maria",
		"phone": "(21)98888-7777",
	})
	require.Equal(t, http.StatusOK, code)

	var updated models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, first.ID, updated.ID)

	code, env = s.do(t, http.MethodPut, fmt.Sprintf("/contacts/%d", first.ID), user.Token, map[string]string{
		"name":  "A",
		"phone": "(21)98888-7777",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.True(t, containsField(messages(t, env), "name"))

	code, env = s.do(t, http.MethodDelete, fmt.Sprintf("/contacts/%d", first.ID), user.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = s.do(t, http.MethodDelete, fmt.Sprintf("/contacts/%d", first.ID), user.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodDelete, "/contacts/abc", user.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPut, "/contacts/9999", user.Token, map[string]string{"name": "Ana", "phone": "1199999-9999"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestContacts_IsolatedBetweenUsers(t *testing.T) {
	s := newTestServer(t, Options{})
	user1 := s.registerAndLogin(t, "user1", "password123")
	user2 := s.registerAndLogin(t, "user2", "password123")

	contact := s.createContact(t, user1.Token, "João Silva", "(11)99999-9999")
	path := fmt.Sprintf("/contacts/%d", contact.ID)

	code, env := s.do(t, http.MethodDelete, path, user2.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Contact not found", env.Error)
	assert.Empty(t, env.Data)

	code, env = s.do(t, http.MethodPut, path, user2.Token, map[string]string{"name": "Hacked", "phone": "1199999-9999"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, env.Data)

	code, env = s.do(t, http.MethodGet, "/contacts", user2.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	code, env = s.do(t, http.MethodGet, "/contacts", user1.Token, nil)
	require.Equal(t, http.StatusOK, code)

	var list []models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, contact, list[0])
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	code, _ := s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := s.do(t, http.MethodPost, "/users/logout", user.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/users/logout", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/users/refresh", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogout_RequiresToken(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodPost, "/users/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Token not provided", env.Error)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	code, env := s.do(t, http.MethodPost, "/users/refresh", user.Token, nil)
	require.Equal(t, http.StatusOK, code)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)

	code, _ = s.do(t, http.MethodGet, "/contacts", data.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/users/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRevocationStoreDown_FailsClosed(t *testing.T) {
	s := newTestServer(t, Options{})
	user := s.registerAndLogin(t, "testuser", "password123")

	s.redis.SetError("LOADING Redis is loading the dataset in memory")

	code, env := s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, env.Success)
	assert.Empty(t, env.Data)

	s.redis.SetError("")

	code, _ = s.do(t, http.MethodGet, "/contacts", user.Token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRateLimit_Login(t *testing.T) {
	s := newTestServer(t, Options{RateLimit: true})
	creds := map[string]string{"username": "ghost", "password": "password123"}

	for i := 0; i < 10; i++ {
		code, _ := s.do(t, http.MethodPost, "/users/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, code)
	}

	code, env := s.do(t, http.MethodPost, "/users/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.False(t, env.Success)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, Options{})

	code, env := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}
