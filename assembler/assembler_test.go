package assembler

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"documentiq-backend/models"
)

func retrieved(title, text string) models.RetrievedChunk {
	return models.RetrievedChunk{
		ID:         title + "_0",
		DocumentID: uuid.New(),
		Text:       text,
		Title:      title,
		Score:      0.9,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidMaxContextSize)

	_, err = New(-100)
	assert.ErrorIs(t, err, ErrInvalidMaxContextSize)

	a, err := New(DefaultMaxContextSize)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxContextSize, a.MaxContextSize())
}

func TestAssembler_Assemble_Empty(t *testing.T) {
	a, err := New(1000)
	require.NoError(t, err)

	context, sources := a.Assemble(nil)
	assert.Empty(t, context)
	assert.Empty(t, sources)
}

func TestAssembler_Assemble_BudgetNeverExceeded(t *testing.T) {
	a, err := New(300)
	require.NoError(t, err)

	chunks := []models.RetrievedChunk{
		retrieved("Doc A", strings.Repeat("a", 100)),
		retrieved("Doc B", strings.Repeat("b", 100)),
		retrieved("Doc C", strings.Repeat("c", 100)),
		retrieved("Doc D", strings.Repeat("d", 100)),
	}

	context, sources := a.Assemble(chunks)
	assert.LessOrEqual(t, len(context), 300)
	assert.NotEmpty(t, sources)
}

func TestAssembler_Assemble_PreservesRankOrder(t *testing.T) {
	a, err := New(DefaultMaxContextSize)
	require.NoError(t, err)

	chunks := []models.RetrievedChunk{
		retrieved("First", "alpha content"),
		retrieved("Second", "beta content"),
		retrieved("Third", "gamma content"),
	}

	context, sources := a.Assemble(chunks)

	alpha := strings.Index(context, "alpha content")
	beta := strings.Index(context, "beta content")
	gamma := strings.Index(context, "gamma content")
	require.NotEqual(t, -1, alpha)
	require.NotEqual(t, -1, beta)
	require.NotEqual(t, -1, gamma)
	assert.Less(t, alpha, beta)
	assert.Less(t, beta, gamma)

	assert.Equal(t, []string{"First", "Second", "Third"}, sources)
}

func TestAssembler_Assemble_SkipsOversizedChunk(t *testing.T) {
	a, err := New(200)
	require.NoError(t, err)

	chunks := []models.RetrievedChunk{
		retrieved("Huge", strings.Repeat("x", 500)),
		retrieved("Fits", "short answer text"),
	}

	context, sources := a.Assemble(chunks)

	assert.NotContains(t, context, "xxx", "a chunk over budget is skipped, never truncated")
	assert.Contains(t, context, "short answer text", "later chunks still use the remaining budget")
	assert.Equal(t, []string{"Fits"}, sources)
}

func TestAssembler_Assemble_SkippedChunkCitesNothing(t *testing.T) {
	a, err := New(50)
	require.NoError(t, err)

	chunks := []models.RetrievedChunk{
		retrieved("Too Big", strings.Repeat("y", 200)),
	}

	context, sources := a.Assemble(chunks)
	assert.Empty(t, context)
	assert.Empty(t, sources, "sources must be empty whenever the context is empty")
}

func TestAssembler_Assemble_DeduplicatesSources(t *testing.T) {
	a, err := New(DefaultMaxContextSize)
	require.NoError(t, err)

	// Five chunks drawn from two documents should cite two sources.
	chunks := []models.RetrievedChunk{
		retrieved("Safety Manual", "chunk one"),
		retrieved("Welding SOP", "chunk two"),
		retrieved("Safety Manual", "chunk three"),
		retrieved("Safety Manual", "chunk four"),
		retrieved("Welding SOP", "chunk five"),
	}

	context, sources := a.Assemble(chunks)

	assert.Equal(t, []string{"Safety Manual", "Welding SOP"}, sources)
	assert.Equal(t, 2, strings.Count(context, "[Source: Welding SOP]"),
		"same-source chunks are each included, not merged")
}

func TestAssembler_Assemble_FallsBackToDocumentID(t *testing.T) {
	a, err := New(DefaultMaxContextSize)
	require.NoError(t, err)

	chunk := models.RetrievedChunk{
		ID:         "untitled_0",
		DocumentID: uuid.New(),
		Text:       "content without a title",
	}

	context, sources := a.Assemble([]models.RetrievedChunk{chunk})

	require.Len(t, sources, 1)
	assert.Equal(t, chunk.DocumentID.String(), sources[0])
	assert.Contains(t, context, chunk.DocumentID.String())
}

func TestAssembler_Assemble_SeparatorCountedInBudget(t *testing.T) {
	// Two 40-char blocks plus the 2-char separator total 82, one over budget,
	// so the second chunk must be dropped.
	first := retrieved("A", strings.Repeat("a", 40-len("[Source: A]\n")))
	second := retrieved("B", strings.Repeat("b", 40-len("[Source: B]\n")))

	a, err := New(81)
	require.NoError(t, err)

	context, sources := a.Assemble([]models.RetrievedChunk{first, second})
	assert.Len(t, context, 40)
	assert.Equal(t, []string{"A"}, sources)

	a, err = New(82)
	require.NoError(t, err)

	context, sources = a.Assemble([]models.RetrievedChunk{first, second})
	assert.Len(t, context, 82)
	assert.Equal(t, []string{"A", "B"}, sources)
}
