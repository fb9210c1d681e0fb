package tools

import (
	"context"
	"testing"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryExecuteDateTime(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDateTimeTool())

	result, err := r.Execute(context.Background(), "datetime", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Data, "iso_format")
}

func TestRegistryExecuteUnknownToolIsNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nonexistent", nil)
	assert.Equal(t, domain.KindNotFound, domain.Kind(err))
}

func TestRegistryExecuteDisabledToolIsToolFailure(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDateTimeTool())
	r.SetEnabled("datetime", false)

	_, err := r.Execute(context.Background(), "datetime", nil)
	assert.Equal(t, domain.KindToolFailure, domain.Kind(err))
}

func TestRegistryListOnlyReturnsEnabled(t *testing.T) {
	r := NewRegistry()
	r.Register(NewDateTimeTool())
	r.Register(NewWebSearchTool("", 1, 1))
	r.SetEnabled("web_search", false)

	assert.ElementsMatch(t, []string{"datetime"}, r.List())
}

func TestSuggestToolsPrioritizesDateTimeOverWebSearch(t *testing.T) {
	assert.Equal(t, []string{"datetime"}, SuggestTools("what time is it now?"))
}

func TestSuggestToolsWebSearchForQuestions(t *testing.T) {
	assert.Equal(t, []string{"web_search"}, SuggestTools("how to reset a forgotten password"))
}

func TestSuggestToolsReturnsNilForPlainStatement(t *testing.T) {
	assert.Nil(t, SuggestTools("thanks for the help"))
}
