package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"material-pipeline/constant"
	"material-pipeline/pkg/apperr"
)

// fakeOracle answers chat completions by looking for the "Task: <step>"
// marker in the user prompt.
func fakeOracle(t *testing.T, answers map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		prompt := req.Messages[len(req.Messages)-1].Content

		for step, answer := range answers {
			if strings.Contains(prompt, "Task: "+step+"\n") {
				writeCompletion(t, w, answer)
				return
			}
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "llama3.1",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	require.NoError(t, err)
}

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{Mode: constant.GeneratorModeLocal, Endpoint: url + "/v1", Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestClientParsesEveryStep(t *testing.T) {
	srv := fakeOracle(t, map[string]string{
		"summary":   "  ## Sorting\n- merge sort splits the input  ",
		"glossary":  "Here you go:\n```json\n{\"glossary\": [{\"term\": \"Pivot\", \"definition\": \"element used to partition\"}, {\"term\": \" \", \"definition\": \"dropped\"}]}\n```",
		"quiz":      `{"quiz": [{"question": "Which sort is stable?", "options": ["merge", "quick", "heap", "selection"], "correctAnswer": "merge", "rationale": "merging keeps order"}]}`,
		"checklist": `{"checklist": ["Implement merge sort", "Trace quicksort on paper"]}`,
		"alignment": `{"score": 87.6, "analysis": "covers unit 3"}`,
	})
	defer srv.Close()
	c := newTestClient(t, srv.URL, time.Second)
	ctx := context.Background()

	summary, err := c.Summarize(ctx, "transcript", "syllabus")
	require.NoError(t, err)
	assert.Equal(t, "## Sorting\n- merge sort splits the input", summary)

	glossary, err := c.ExtractGlossary(ctx, "transcript", "")
	require.NoError(t, err)
	require.Len(t, glossary, 1)
	assert.Equal(t, "Pivot", glossary[0].Term)

	quiz, err := c.BuildQuiz(ctx, "transcript", "")
	require.NoError(t, err)
	require.Len(t, quiz, 1)
	assert.Equal(t, "merge", quiz[0].CorrectAnswer)
	assert.Len(t, quiz[0].Options, 4)

	checklist, err := c.BuildChecklist(ctx, "transcript", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Implement merge sort", "Trace quicksort on paper"}, checklist)

	alignment, err := c.ScoreAlignment(ctx, "transcript", "syllabus")
	require.NoError(t, err)
	require.NotNil(t, alignment)
	assert.Equal(t, 88, alignment.Score)
	assert.Equal(t, "covers unit 3", alignment.Analysis)
}

func TestClientMalformedAnswersYieldEmptyResults(t *testing.T) {
	srv := fakeOracle(t, map[string]string{
		"glossary":  "I could not find any terms.",
		"quiz":      `{"questions": []}`,
		"checklist": `{"checklist": "read the notes"`,
		"alignment": `{"analysis": "no score here"}`,
	})
	defer srv.Close()
	c := newTestClient(t, srv.URL, time.Second)
	ctx := context.Background()

	glossary, err := c.ExtractGlossary(ctx, "t", "")
	require.NoError(t, err)
	assert.Empty(t, glossary)
	assert.NotNil(t, glossary)

	quiz, err := c.BuildQuiz(ctx, "t", "")
	require.NoError(t, err)
	assert.Empty(t, quiz)

	checklist, err := c.BuildChecklist(ctx, "t", "")
	require.NoError(t, err)
	assert.Empty(t, checklist)

	alignment, err := c.ScoreAlignment(ctx, "t", "s")
	require.NoError(t, err)
	assert.Nil(t, alignment)
}

func TestClientScoreIsClamped(t *testing.T) {
	srv := fakeOracle(t, map[string]string{"alignment": `{"score": 140, "analysis": "x"}`})
	defer srv.Close()

	alignment, err := newTestClient(t, srv.URL, time.Second).ScoreAlignment(context.Background(), "t", "s")
	require.NoError(t, err)
	assert.Equal(t, 100, alignment.Score)
	assert.Equal(t, 0, clampScore(-3))
}

func TestClientServerErrorIsGenerationStep(t *testing.T) {
	srv := fakeOracle(t, nil)
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, time.Second).Summarize(context.Background(), "t", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGenerationStep))
}

func TestClientTimeoutIsGenerationStep(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, srv.URL, 50*time.Millisecond).BuildChecklist(context.Background(), "t", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGenerationStep))
}

func TestNewValidatesMode(t *testing.T) {
	_, err := New(Config{Mode: constant.GeneratorModeCloud})
	assert.Error(t, err)

	_, err = New(Config{Mode: constant.GeneratorModeLocal})
	assert.Error(t, err)

	_, err = New(Config{Mode: "remote", Endpoint: "http://localhost"})
	assert.Error(t, err)

	c, err := New(Config{Mode: constant.GeneratorModeCloud, APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, defaultCloudModel, c.model)
	assert.Equal(t, defaultTimeout, c.timeout)
	assert.True(t, c.jsonMode)
}

func TestCallTimeoutDefaults(t *testing.T) {
	assert.Equal(t, 120*time.Second, Config{}.CallTimeout())
	assert.Equal(t, 5*time.Second, Config{Timeout: 5 * time.Second}.CallTimeout())
}
