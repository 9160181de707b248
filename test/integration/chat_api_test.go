package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coeus-ai-be/internal/bootstrap"
	"coeus-ai-be/internal/config"
	"coeus-ai-be/internal/server"
)

const testSecret = "integration_test_secret"

func setupApp(t *testing.T) (*server.Server, string) {
	t.Helper()

	if err := godotenv.Load("../../.env"); err != nil {
		t.Logf("Warning: Could not load ../../.env: %v", err)
	}
	os.Setenv("JWT_SECRET", testSecret)
	// Ollama constructs without credentials; no generation call is made here
	os.Setenv("LLM_PROVIDER", "ollama")

	cfg := config.Load()
	container := bootstrap.NewContainer(cfg)
	srv := server.New(cfg, container)

	userId := uuid.New()
	claims := jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return srv, token
}

func doJSON(t *testing.T, srv *server.Server, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.GetApp().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	return envelope
}

func TestSessionLifecycle(t *testing.T) {
	srv, token := setupApp(t)

	// No token, no session
	resp := doJSON(t, srv, "POST", "/api/chat/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Create
	resp = doJSON(t, srv, "POST", "/api/chat/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]any)
	sessionId := data["id"].(string)
	require.NotEmpty(t, sessionId)

	// History starts with the welcome message
	resp = doJSON(t, srv, "GET", fmt.Sprintf("/api/chat/v1/sessions/%s/messages", sessionId), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope = decodeEnvelope(t, resp)
	messages := envelope["data"].([]any)
	require.Len(t, messages, 1)
	first := messages[0].(map[string]any)
	assert.Equal(t, "assistant", first["role"])
	assert.Equal(t, "complete", first["status"])
	assert.Contains(t, first["content"], "Upload a PDF")

	// A foreign session id is indistinguishable from a missing one
	resp = doJSON(t, srv, "GET", fmt.Sprintf("/api/chat/v1/sessions/%s/messages", uuid.NewString()), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Delete, then the session is gone
	resp = doJSON(t, srv, "DELETE", "/api/chat/v1/sessions/"+sessionId, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	resp = doJSON(t, srv, "GET", fmt.Sprintf("/api/chat/v1/sessions/%s/messages", sessionId), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestToolInvocationWithoutDocuments(t *testing.T) {
	srv, token := setupApp(t)

	resp := doJSON(t, srv, "POST", "/api/chat/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionId := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	// Empty registry: a notice comes back instead of a stream
	resp = doJSON(t, srv, "POST", fmt.Sprintf("/api/chat/v1/sessions/%s/tools", sessionId), token,
		map[string]any{"tool_type": "quickSummary"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	notice := envelope["data"].(map[string]any)
	assert.Contains(t, notice["content"], "upload a PDF")

	// The notice joined the history
	resp = doJSON(t, srv, "GET", fmt.Sprintf("/api/chat/v1/sessions/%s/messages", sessionId), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	messages := decodeEnvelope(t, resp)["data"].([]any)
	assert.Len(t, messages, 2)

	// Unknown tool kind is rejected by validation
	resp = doJSON(t, srv, "POST", fmt.Sprintf("/api/chat/v1/sessions/%s/tools", sessionId), token,
		map[string]any{"tool_type": "essayWriter"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDocumentUploadValidation(t *testing.T) {
	srv, token := setupApp(t)

	resp := doJSON(t, srv, "POST", "/api/chat/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionId := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	upload := func(filename string, content []byte) *http.Response {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req, err := http.NewRequest("POST", fmt.Sprintf("/api/chat/v1/sessions/%s/documents", sessionId), &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)

		r, err := srv.GetApp().Test(req, -1)
		require.NoError(t, err)
		return r
	}

	// Non-PDF content is refused with the flat error shape
	resp = upload("notes.txt", []byte("plain text, not a pdf"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	resp.Body.Close()
	assert.Equal(t, "File must be a PDF", errBody["error"])

	// A real PDF registers and echoes back name + base64
	resp = upload("algebra.pdf", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	resp.Body.Close()
	assert.Equal(t, true, ok["success"])
	assert.Equal(t, "algebra.pdf", ok["name"])
	assert.NotEmpty(t, ok["base64"])

	// And shows up in the listing
	resp = doJSON(t, srv, "GET", fmt.Sprintf("/api/chat/v1/sessions/%s/documents", sessionId), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	docs := decodeEnvelope(t, resp)["data"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "algebra.pdf", docs[0].(map[string]any)["name"])
}
