package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-chatrelay/internal/config"
	"github.com/npezzotti/go-chatrelay/internal/database"
	"github.com/npezzotti/go-chatrelay/internal/server"
	"github.com/npezzotti/go-chatrelay/internal/stats"
	"github.com/npezzotti/go-chatrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testConfig = &config.Config{
	ServerAddr:     "localhost:8080",
	DatabaseDSN:    "dsn",
	SigningKey:     []byte("secret"),
	AllowedOrigins: []string{"http://localhost:3000"},
	StoreTimeout:   time.Second,
}

// newTestApp wires a GoChatApp and its chat server to db.
func newTestApp(t *testing.T, db database.ChatRepository) *GoChatApp {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterFunc", mock.Anything, mock.Anything).Return()
	su.On("RegisterMetric", mock.Anything).Return()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, db, su, testConfig.SigningKey, testConfig.StoreTimeout)
	if err != nil {
		t.Fatalf("failed to create chat server: %v", err)
	}

	return NewGoChatApp(http.NewServeMux(), logger, cs, db, testConfig)
}

// do runs req through the full handler chain.
func do(app *GoChatApp, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.mux.Handler.ServeHTTP(rr, req)
	return rr
}

func TestNewGoChatApp(t *testing.T) {
	db := &database.MockChatRepository{}
	app := newTestApp(t, db)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.NotNil(t, app.log, "expected logger to be set")
	assert.NotNil(t, app.cs, "expected chat server to be set")
	assert.Equal(t, db, app.db, "expected db to be set")
	assert.Equal(t, testConfig.ServerAddr, app.mux.Addr, "expected server address to match config")
	assert.Equal(t, testConfig.AllowedOrigins, app.allowedOrigins)
	assert.Equal(t, time.Second, app.storeTimeout)
}

func TestNewGoChatApp_defaultStoreTimeout(t *testing.T) {
	cfg := *testConfig
	cfg.StoreTimeout = 0

	app := NewGoChatApp(http.NewServeMux(), testutil.TestLogger(t), &server.ChatServer{}, &database.MockChatRepository{}, &cfg)
	assert.Equal(t, config.DefaultStoreTimeout, app.storeTimeout)
}

func TestGoChatApp_cors(t *testing.T) {
	app := newTestApp(t, &database.MockChatRepository{})

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	rr := do(app, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}
