package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mediassist/backend/internal/account"
	"github.com/mediassist/backend/internal/api/handlers"
	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/internal/auth"
	"github.com/mediassist/backend/internal/catalog"
	"github.com/mediassist/backend/internal/inference"
	"github.com/mediassist/backend/internal/middleware/ratelimit"
	"github.com/mediassist/backend/internal/report"
	"github.com/mediassist/backend/internal/storage/sqlite"
	"github.com/mediassist/backend/pkg/config"
)

type fixtureClassifier struct {
	mu     sync.Mutex
	result *inference.Result
	err    error
}

func (f *fixtureClassifier) Predict(context.Context, []string) (*inference.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func (f *fixtureClassifier) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type testServer struct {
	app        *fiber.App
	store      *sqlite.Client
	classifier *fixtureClassifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewClient(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, store.InitSchema(ctx))
	t.Cleanup(func() { _ = store.Close() })

	classifier := &fixtureClassifier{result: &inference.Result{
		Predicted: "Flu",
		Scores:    inference.Scores{{Label: "Flu", Value: 0.72}, {Label: "Cold", Value: 0.20}, {Label: "Allergy", Value: 0.08}},
	}}
	cat := catalog.Default()
	gateway := inference.NewGateway(cat, &scaled{classifier}, "fixture")

	accounts, err := account.NewService(store, bcrypt.MinCost, true)
	require.NoError(t, err)

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(limiter.Stop)

	cfg := &config.Config{Env: "development"}
	app := NewApp(cfg, Dependencies{
		Catalog:    cat,
		Predictor:  gateway,
		Reports:    report.NewService(report.NewBuilder(), store, store, gateway),
		Accounts:   accounts,
		Tokens:     auth.NewTokenIssuer("test-secret", time.Hour),
		Limiter:    limiter,
		ScoreScale: inference.ScaleAuto,
		Ready:      map[string]handlers.Pinger{"sqlite": store},
	})

	return &testServer{app: app, store: store, classifier: classifier}
}

// scaled runs the fixture output through the same normalization a real
// transport applies.
type scaled struct{ inner inference.Predictor }

func (s *scaled) Predict(ctx context.Context, symptoms []string) (*inference.Result, error) {
	res, err := s.inner.Predict(ctx, symptoms)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	return inference.ParseOutput(data, inference.ScaleAuto)
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = strings.NewReader(string(data))
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out, string(raw)
}

// signUp registers and logs in, returning the user id and token.
func (s *testServer) signUp(t *testing.T, username string) (string, string) {
	t.Helper()
	status, _, _ := s.do(t, "POST", "/api/register", "", map[string]interface{}{
		"fullName": "Test " + username, "age": 30, "username": username, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body, _ := s.do(t, "POST", "/api/login", "", map[string]string{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]interface{})
	return user["_id"].(string), body["token"].(string)
}

func TestRoot(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := s.do(t, "GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "MediAssist Backend Running!", body["message"])

	status, body, _ = s.do(t, "GET", "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	reg := map[string]interface{}{"fullName": "Asha Rao", "age": 29, "username": "asha", "password": "secret123"}

	status, body, _ := s.do(t, "POST", "/api/register", "", reg)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	status, body, _ = s.do(t, "POST", "/api/register", "", reg)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username already exists", body["message"])

	status, body, _ = s.do(t, "POST", "/api/login", "", map[string]string{"username": "asha", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", body["message"])

	status, body, _ = s.do(t, "POST", "/api/login", "", map[string]string{"username": "ghost", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid username or password", body["message"])

	status, body, _ = s.do(t, "POST", "/api/login", "", map[string]string{"username": "asha", "password": "secret123"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Welcome Asha Rao!", body["message"])
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "asha", user["username"])
	assert.NotContains(t, user, "password")
}

func TestPredictRelayKeepsOrder(t *testing.T) {
	s := newTestServer(t)

	status, _, raw := s.do(t, "POST", "/api/predict", "", map[string]interface{}{"symptoms": []string{"high_fever", "cough"}})
	require.Equal(t, http.StatusOK, status, raw)

	assert.Contains(t, raw, `"predicted":"Flu"`)
	flu := strings.Index(raw, `"Flu":`)
	cold := strings.Index(raw, `"Cold":`)
	allergy := strings.Index(raw, `"Allergy":`)
	assert.True(t, flu < cold && cold < allergy, raw)
}

func TestPredictRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	status, _, _ := s.do(t, "POST", "/api/predict", "", map[string]interface{}{"symptoms": []string{}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = s.do(t, "POST", "/api/predict", "", map[string]interface{}{"symptoms": []string{"purple_elbows"}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = s.do(t, "POST", "/api/predict", "", map[string]interface{}{"symptoms": "cough"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPredictClassifierFailure(t *testing.T) {
	s := newTestServer(t)
	s.classifier.fail(fmt.Errorf("no response within 30s: %w", apperrors.ErrTimeout))

	status, body, _ := s.do(t, "POST", "/api/predict", "", map[string]interface{}{"symptoms": []string{"cough"}})
	assert.Equal(t, http.StatusGatewayTimeout, status)
	assert.Equal(t, "Prediction failed. Please try again later.", body["message"])
}

func TestReportRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, _, _ := s.do(t, "GET", "/api/report/someone", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.signUp(t, "asha")
	_, otherToken := s.signUp(t, "ravi")

	status, body, _ := s.do(t, "GET", "/api/report/"+userID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["reports"])

	save := `{"userId":"` + userID + `","symptoms":["high_fever","cough"],` +
		`"modelOutput":{"predicted":"Flu","prediction":{"Cold":20,"Flu":72,"Allergy":8}}}`
	status, body, raw := s.do(t, "POST", "/api/report/save", token, save)
	require.Equal(t, http.StatusCreated, status, raw)
	assert.Equal(t, "Report saved successfully", body["message"])

	saved := body["report"].(map[string]interface{})
	reportID := saved["_id"].(string)
	assert.Equal(t, "Flu", saved["predicted"])
	assert.Equal(t, 72.0, saved["confidence"])
	assert.Equal(t, false, saved["status"])
	diagnosis := saved["diagnosis"].([]interface{})
	require.Len(t, diagnosis, 3)
	assert.Equal(t, "Flu", diagnosis[0].(map[string]interface{})["disease"])
	assert.Equal(t, "Cold", diagnosis[1].(map[string]interface{})["disease"])

	status, body, _ = s.do(t, "GET", "/api/report/"+userID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["reports"], 1)

	status, body, _ = s.do(t, "GET", "/api/report/"+userID+"?top=1", token, nil)
	require.Equal(t, http.StatusOK, status)
	top := body["reports"].([]interface{})[0].(map[string]interface{})
	assert.Len(t, top["diagnosis"], 1)

	status, _, _ = s.do(t, "GET", "/api/report/"+userID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _, _ = s.do(t, "GET", "/api/report/item/"+reportID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = s.do(t, "PATCH", "/api/report/"+reportID+"/status", token, map[string]bool{"status": true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["report"].(map[string]interface{})["status"])

	status, _, _ = s.do(t, "GET", "/api/report/item/"+reportID, otherToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _, _ = s.do(t, "DELETE", "/api/report/"+reportID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ = s.do(t, "DELETE", "/api/report/"+reportID, token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Report deleted successfully", body["message"])

	status, _, _ = s.do(t, "DELETE", "/api/report/"+reportID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSaveReportValidation(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.signUp(t, "asha")

	status, body, _ := s.do(t, "POST", "/api/report/save", token, map[string]interface{}{
		"userId": userID, "symptoms": []string{"cough"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "userId, symptoms, and modelOutput are required", body["message"])

	status, _, _ = s.do(t, "POST", "/api/report/save", token, map[string]interface{}{
		"userId": userID, "symptoms": []string{"cough"}, "modelOutput": map[string]interface{}{"prediction": map[string]int{}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _, _ = s.do(t, "POST", "/api/report/save", token, map[string]interface{}{
		"userId": "someone-else", "symptoms": []string{"cough"}, "modelOutput": map[string]interface{}{"prediction": map[string]int{"Flu": 1}},
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestPredictAndSave(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.signUp(t, "asha")

	status, body, raw := s.do(t, "POST", "/api/report/predict", token, map[string]interface{}{"symptoms": []string{"high_fever", "chills"}})
	require.Equal(t, http.StatusCreated, status, raw)
	saved := body["report"].(map[string]interface{})
	assert.Equal(t, "Flu", saved["predicted"])
	assert.InDelta(t, 72.0, saved["confidence"].(float64), 1e-9)

	s.classifier.fail(fmt.Errorf("connection refused: %w", apperrors.ErrUnreachable))
	status, _, _ = s.do(t, "POST", "/api/report/predict", token, map[string]interface{}{"symptoms": []string{"cough"}})
	assert.Equal(t, http.StatusServiceUnavailable, status)

	reports, err := s.store.ListReportsByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, reports, 1, "a failed prediction stores nothing")
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestServer(t)
	userID, token := s.signUp(t, "asha")
	_, otherToken := s.signUp(t, "ravi")

	status, _, _ := s.do(t, "POST", "/api/report/predict", token, map[string]interface{}{"symptoms": []string{"cough"}})
	require.Equal(t, http.StatusCreated, status)

	status, _, _ = s.do(t, "DELETE", "/api/asha", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body, _ := s.do(t, "DELETE", "/api/asha", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User deleted successfully", body["message"])

	reports, err := s.store.ListReportsByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, reports)

	status, _, _ = s.do(t, "POST", "/api/login", "", map[string]string{"username": "asha", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStaleTokenCannotDeleteReregisteredAccount(t *testing.T) {
	s := newTestServer(t)
	_, oldToken := s.signUp(t, "asha")

	status, _, _ := s.do(t, "DELETE", "/api/asha", oldToken, nil)
	require.Equal(t, http.StatusOK, status)

	newID, newToken := s.signUp(t, "asha")
	status, _, _ = s.do(t, "POST", "/api/report/predict", newToken, map[string]interface{}{"symptoms": []string{"cough"}})
	require.Equal(t, http.StatusCreated, status)

	status, body, _ := s.do(t, "DELETE", "/api/asha", oldToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.NotEqual(t, "User deleted successfully", body["message"])

	user, err := s.store.GetUserByID(context.Background(), newID)
	require.NoError(t, err)
	assert.Equal(t, "asha", user.Username)

	reports, err := s.store.ListReportsByUser(context.Background(), newID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestRegisterIgnoresClientUserType(t *testing.T) {
	s := newTestServer(t)

	status, _, _ := s.do(t, "POST", "/api/register", "", map[string]interface{}{
		"fullName": "Mallory", "age": 40, "username": "mallory", "password": "secret123", "userType": "admin",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body, _ := s.do(t, "POST", "/api/login", "", map[string]string{"username": "mallory", "password": "secret123"})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "patient", user["userType"])
}

func TestListSymptoms(t *testing.T) {
	s := newTestServer(t)

	status, body, _ := s.do(t, "GET", "/api/symptoms?q=fever", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["categories"])
	assert.Greater(t, body["count"].(float64), 0.0)
}
