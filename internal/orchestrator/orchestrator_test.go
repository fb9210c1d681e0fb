package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/cloo-solutions/kbcore/internal/retriever"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/cloo-solutions/kbcore/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r % 7)
	}
	return v, nil
}

type fakeCompleter struct {
	answer string
	model  string
	err    error
}

func (f fakeCompleter) Complete(ctx context.Context, system, user string) (string, string, error) {
	return f.answer, f.model, f.err
}

func newTestOrchestrator(t *testing.T, completer Completer) (*Orchestrator, storage.Storage) {
	t.Helper()
	st, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	mgr := indexmanager.New(st, fakeEmbedder{})
	r := retriever.New(mgr, fakeEmbedder{}, st)
	registry := tools.NewRegistry()
	registry.Register(tools.NewDateTimeTool())
	return New(st, r, registry, completer), st
}

func seedProject(t *testing.T, st storage.Storage, pid string, active bool) {
	t.Helper()
	p := domain.NewProject(pid, "Test Project", time.Now().UTC())
	p.Active = active
	require.NoError(t, st.PutProject(context.Background(), p))
}

func seedFAQ(t *testing.T, st storage.Storage, pid, id, q, a string) {
	t.Helper()
	faq := domain.NewFAQ(id, pid, q, a, domain.SourceManual, time.Now().UTC())
	_, err := st.PutFAQ(context.Background(), pid, faq)
	require.NoError(t, err)
}

func TestAnswerUsesCompleterWhenAvailable(t *testing.T) {
	o, st := newTestOrchestrator(t, fakeCompleter{answer: "synthesized answer", model: "gpt-test"})
	seedProject(t, st, "proj-1", true)
	seedFAQ(t, st, "proj-1", "faq-1", "What is your refund policy?", "Refunds within 30 days.")

	resp, err := o.Answer(context.Background(), Request{ProjectID: "proj-1", Question: "refund policy", UseTools: true})
	require.NoError(t, err)
	assert.Equal(t, "synthesized answer", resp.Answer)
	assert.Equal(t, "gpt-test", resp.Model)
	assert.NotEmpty(t, resp.Sources)
}

func TestAnswerFallsBackWhenCompleterFails(t *testing.T) {
	o, st := newTestOrchestrator(t, fakeCompleter{err: assert.AnError})
	seedProject(t, st, "proj-1", true)
	seedFAQ(t, st, "proj-1", "faq-1", "What is your refund policy?", "Refunds within 30 days.")

	resp, err := o.Answer(context.Background(), Request{ProjectID: "proj-1", Question: "refund policy", UseTools: false})
	require.NoError(t, err)
	assert.Empty(t, resp.Model)
	assert.Contains(t, resp.Answer, "Refunds within 30 days.")
}

func TestAnswerRejectsDeactivatedProjectAsNotFound(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	seedProject(t, st, "proj-1", false)

	_, err := o.Answer(context.Background(), Request{ProjectID: "proj-1", Question: "anything"})
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestAnswerInvokesDateTimeToolAndFallsBackToItsResult(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	seedProject(t, st, "proj-1", true)

	resp, err := o.Answer(context.Background(), Request{ProjectID: "proj-1", Question: "what time is it now?", UseTools: true})
	require.NoError(t, err)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, "datetime", resp.ToolsUsed[0].ToolName)
	assert.True(t, resp.ToolsUsed[0].Result.Success)
	assert.Contains(t, resp.Answer, "current date and time")
}

func TestAnswerSkipsToolsWhenDisabled(t *testing.T) {
	o, st := newTestOrchestrator(t, nil)
	seedProject(t, st, "proj-1", true)

	resp, err := o.Answer(context.Background(), Request{ProjectID: "proj-1", Question: "what time is it now?", UseTools: false})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolsUsed)
}

func TestComposePromptTruncatesEarliestSourcesFirstUnderCap(t *testing.T) {
	sources := make([]retriever.Source, 0, 200)
	for i := 0; i < 200; i++ {
		sources = append(sources, retriever.Source{ID: string(rune('a' + i%26)), Kind: "faq", Title: "t", Excerpt: "this is a fairly long excerpt used to exercise the prompt cap behavior repeatedly"})
	}
	_, user := composePrompt("question", sources, nil)
	assert.LessOrEqual(t, len(user), promptCharCap)
}

func TestSufficientContextGatesWebSearch(t *testing.T) {
	assert.False(t, sufficientContext(nil))
	assert.False(t, sufficientContext([]retriever.Source{{Score: 0.01}}))
	assert.True(t, sufficientContext([]retriever.Source{{Score: 0.5}}))
}
