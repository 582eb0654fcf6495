package service

import (
	"context"
	"testing"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/model"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/repository"
	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimPreamble(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "Sure! Here is the summary:\n\n# ABC School\nText", "# ABC School\nText"},
		{"bullet", "Okay.\n- Fees: 1000", "- Fees: 1000"},
		{"numbered", "Here you go\n1. Admissions open", "1. Admissions open"},
		{"numbered paren", "Intro 2) Second", "2) Second"},
		{"emoji", "Of course!\n🏫 ABC School", "🏫 ABC School"},
		{"unicode bullet", "Summary:\n• Bus routes", "• Bus routes"},
		{"already clean", "# Title", "# Title"},
		{"no marker", "  just text here  ", "just text here"},
		{"digit without dot", "Call 555 now", "Call 555 now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimPreamble(tt.in))
		})
	}
}

func TestFormatEmptyProfileSkipsLLM(t *testing.T) {
	db := testutil.NewTestDB(t)
	seedProfile(t, db, "EMPTY", model.SchoolInfo{})
	seedAuth(t, db, "EMPTY", "school-key", model.SchoolStatusActive)

	fake := &fakeLLM{reply: "# unused"}
	f := NewKnowledgeBaseFormatter(repository.NewSchoolRepository(db), fake, testLLMConfig)

	for _, code := range []string{"EMPTY", "MISSING"} {
		html, err := f.Format(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, `<span class="text-gray-500">No knowledge base found.</span>`, html)
	}
	assert.Zero(t, fake.callCount())
}

func TestFormatRendersMarkdown(t *testing.T) {
	db := testutil.NewTestDB(t)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School", Fees: "Rs 1000"})
	seedAuth(t, db, "ABC", "school-key", model.SchoolStatusActive)

	fake := &fakeLLM{reply: "Sure! Here it is:\n\n# ABC School\n\n- 💰 Fees: Rs 1000\n"}
	f := NewKnowledgeBaseFormatter(repository.NewSchoolRepository(db), fake, testLLMConfig)

	html, err := f.Format(context.Background(), "ABC")
	require.NoError(t, err)
	assert.NotContains(t, html, "Sure!")
	assert.Contains(t, html, "<h1>ABC School</h1>")
	assert.Contains(t, html, "<li>💰 Fees: Rs 1000</li>")

	require.Equal(t, 1, fake.callCount())
	assert.Equal(t, "school-key", fake.calls[0].apiKey)
	assert.Contains(t, fake.calls[0].message, `"fees": "Rs 1000"`)
}

func TestFormatWithoutKey(t *testing.T) {
	db := testutil.NewTestDB(t)
	seedProfile(t, db, "ABC", model.SchoolInfo{Name: "ABC School"})

	f := NewKnowledgeBaseFormatter(repository.NewSchoolRepository(db), &fakeLLM{}, testLLMConfig)
	_, err := f.Format(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrKeyNotConfigured)
}
