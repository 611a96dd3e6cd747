package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// fakeAPI serves /chat/completions and records the requests it saw.
type fakeAPI struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	reply    func(req openai.ChatCompletionRequest) (int, string)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}

	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	status, content := f.reply(req)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if status != http.StatusOK {
		_, _ = w.Write([]byte(`{"error":{"message":"` + content + `","type":"server_error"}}`))
		return
	}

	_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			FinishReason: openai.FinishReasonStop,
		}},
	})
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.RequestTimeout = 2 * time.Second

	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestLoadPrompts(t *testing.T) {
	p, err := loadPrompts()
	require.NoError(t, err)

	assert.Contains(t, p.generate.UserPrompt, "{{.Theme}}")
	assert.Contains(t, p.review.SystemPrompt, "evaluation")
	assert.Contains(t, p.single.ES, "1500")
	assert.Contains(t, p.single.EN, "1500")
}

func TestGenerate_DecodesExercises(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, `{"exercises":[
			{"Title":"A","Exercise":"a","Examples":"x","Hints":"h"},
			{"Title":"B","Exercise":"b","Examples":"x","Hints":"h"},
			{"Title":"C","Exercise":"c","Examples":"x","Hints":"h"},
			{"Title":"D","Exercise":"d","Examples":"x","Hints":"h"}]}`
	}}
	c := newTestClient(t, api)

	got, err := c.Generate(context.Background(), exercise.GenerateRequest{
		Theme:       exercise.ThemeHalloween,
		AvoidTitles: []string{"Old One", "Old Two"},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "D", got[3].Title)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.Contains(t, req.Messages[1].Content, "Halloween")
	assert.Contains(t, req.Messages[1].Content, `"Old One", "Old Two"`)
}

func TestTranslate_SendsSource(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, "```json\n{\"exercises\":[{\"Title\":\"Suma\",\"Exercise\":\"s\"}]}\n```"
	}}
	c := newTestClient(t, api)

	got, err := c.Translate(context.Background(), []exercise.Content{{Title: "Sum", Exercise: "s"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Suma", got[0].Title)
	assert.Contains(t, api.requests[0].Messages[1].Content, `"Title": "Sum"`)
}

func TestGenerate_MalformedIsResponseError(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, "Title: not json"
	}}
	c := newTestClient(t, api)

	_, err := c.Generate(context.Background(), exercise.GenerateRequest{Theme: exercise.ThemeGeneral})
	assert.ErrorIs(t, err, shared.ErrGeneratorResponse)
	assert.False(t, shared.IsExternalService(err))
}

func TestReview(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, `{"evaluation":[{"Response":"Bien hecho","Score":8}]}`
	}}
	c := newTestClient(t, api)

	review, err := c.Review(context.Background(), exercise.ReviewRequest{
		Title:      "Sum",
		Exercise:   "Add two numbers",
		Code:       "func sum(a, b int) int { return a + b }",
		Difficulty: "hard",
		Language:   "es",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bien hecho", review.Feedback)
	assert.Equal(t, 8.0, review.Score)

	req := api.requests[0]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	assert.Contains(t, req.Messages[1].Content, "spanish")
	assert.Contains(t, req.Messages[1].Content, "return a + b")
}

func TestReview_EmptyEvaluation(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, `{"evaluation":[]}`
	}}
	c := newTestClient(t, api)

	_, err := c.Review(context.Background(), exercise.ReviewRequest{Language: "en"})
	assert.ErrorIs(t, err, shared.ErrGeneratorResponse)
}

func TestGenerateSingle_UsesLanguagePrompt(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusOK, "  Reto navideño\n"
	}}
	c := newTestClient(t, api)

	text, err := c.GenerateSingle(context.Background(), exercise.ThemeChristmas, "easy", "es")
	require.NoError(t, err)
	assert.Equal(t, "Reto navideño", text)

	req := api.requests[0]
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Escribe un ejercicio")
	assert.Contains(t, req.Messages[0].Content, "Christmas")
	assert.Nil(t, req.ResponseFormat)
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		return http.StatusServiceUnavailable, "overloaded"
	}}
	c := newTestClient(t, api)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GenerateSingle(ctx, exercise.ThemeGeneral, "easy", "en")
		assert.ErrorIs(t, err, shared.ErrGeneratorUnavailable)
	}

	// The fourth call fails fast without reaching the server.
	_, err := c.GenerateSingle(ctx, exercise.ThemeGeneral, "easy", "en")
	assert.ErrorIs(t, err, shared.ErrGeneratorUnavailable)
	assert.Len(t, api.requests, 3)
}

func TestPerCallTimeout(t *testing.T) {
	api := &fakeAPI{reply: func(openai.ChatCompletionRequest) (int, string) {
		time.Sleep(300 * time.Millisecond)
		return http.StatusOK, "late"
	}}
	c := newTestClient(t, api)
	c.cfg.RequestTimeout = 50 * time.Millisecond

	_, err := c.GenerateSingle(context.Background(), exercise.ThemeGeneral, "easy", "en")
	assert.ErrorIs(t, err, shared.ErrGeneratorTimeout)
}

func TestRender(t *testing.T) {
	out := render("{{.A}} and {{.B}} and {{.A}}", map[string]string{"A": "x", "B": "y"})
	assert.Equal(t, "x and y and x", out)
}
