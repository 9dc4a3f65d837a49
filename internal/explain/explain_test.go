package explain

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	text string
	err  error

	gotSystem string
	gotUser   string
}

func (s *stubProvider) Generate(_ context.Context, system, user string, _ int) (string, error) {
	s.gotSystem = system
	s.gotUser = user
	return s.text, s.err
}

func TestExplainContract_UsesProviderText(t *testing.T) {
	p := &stubProvider{text: "  Looks risky because of high taxes.  "}
	g := NewGenerator(p, time.Second, nil)

	got := g.ExplainContract(context.Background(), []DetectedFactor{
		{Name: "High Taxes", Description: "Combined tax is 25%"},
	}, 45, "medium")

	assert.Equal(t, "Looks risky because of high taxes.", got)
	assert.Contains(t, p.gotUser, "45/100")
	assert.Contains(t, p.gotUser, "High Taxes")
	assert.Contains(t, p.gotUser, "Combined tax is 25%")
	assert.Contains(t, p.gotSystem, "non-expert")
}

func TestExplainContract_PromptOmitsUndetected(t *testing.T) {
	p := &stubProvider{text: "ok"}
	g := NewGenerator(p, time.Second, nil)

	g.ExplainContract(context.Background(), nil, 92, "safe")
	assert.Contains(t, p.gotUser, "No risk factors were detected")
}

func TestExplainContract_FallbackOnError(t *testing.T) {
	p := &stubProvider{err: errors.New("rate limited")}
	g := NewGenerator(p, time.Second, nil)

	got := g.ExplainContract(context.Background(), nil, 15, "critical")
	assert.Equal(t, ContractFallback("critical"), got)
}

func TestExplainContract_FallbackOnEmpty(t *testing.T) {
	p := &stubProvider{text: "   "}
	g := NewGenerator(p, time.Second, nil)

	got := g.ExplainContract(context.Background(), nil, 70, "low")
	assert.Equal(t, ContractFallback("low"), got)
}

func TestExplainContract_NilProviderAlwaysFallsBack(t *testing.T) {
	g := NewGenerator(nil, time.Second, nil)

	for _, level := range []string{"critical", "high", "medium", "low", "safe"} {
		got := g.ExplainContract(context.Background(), nil, 50, level)
		assert.Equal(t, ContractFallback(level), got, "level %s", level)
	}
}

func TestExplainContract_FallbackDeterministic(t *testing.T) {
	p := &stubProvider{err: errors.New("down")}
	g := NewGenerator(p, time.Second, nil)

	first := g.ExplainContract(context.Background(), nil, 30, "high")
	second := g.ExplainContract(context.Background(), nil, 30, "high")
	assert.Equal(t, first, second, "fallback must be reproducible")
}

func TestExplainWallet_Fallbacks(t *testing.T) {
	g := NewGenerator(nil, time.Second, nil)

	for _, grade := range []string{"A", "B", "C", "D", "F"} {
		got := g.ExplainWallet(context.Background(), grade, 10, 1, 2)
		assert.Equal(t, WalletFallback(grade), got, "grade %s", grade)
	}

	// Unknown grade falls back to the C template rather than panicking
	assert.Equal(t, WalletFallback("C"), g.ExplainWallet(context.Background(), "Z", 0, 0, 0))
}

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices": [{"message": {"content": "Generated summary."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "gpt-4o-mini", time.Second)
	require.NotNil(t, c)

	got, err := c.Generate(context.Background(), "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, "Generated summary.", got)
}

func TestOpenAIClient_ErrorPaths(t *testing.T) {
	t.Run("no api key disables client", func(t *testing.T) {
		assert.Nil(t, NewOpenAIClient("http://x", "", "m", time.Second))
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewOpenAIClient(srv.URL, "sk-test", "m", time.Second)
		_, err := c.Generate(context.Background(), "s", "u", 10)
		assert.Error(t, err)
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer srv.Close()

		c := NewOpenAIClient(srv.URL, "sk-test", "m", time.Second)
		_, err := c.Generate(context.Background(), "s", "u", 10)
		assert.Error(t, err)
	})
}

func TestGeneratorTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"choices": [{"message": {"content": "too late"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "m", time.Second)
	g := NewGenerator(c, 50*time.Millisecond, nil)

	got := g.ExplainContract(context.Background(), nil, 85, "safe")
	if !strings.Contains(got, "passed our security checks") {
		t.Errorf("expected safe fallback on timeout, got %q", got)
	}
}
