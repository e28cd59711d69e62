package history_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
)

func record(i int, lang language.Language) history.Record {
	return history.Record{
		ID:       fmt.Sprintf("rec-%d", i),
		Code:     fmt.Sprintf("print(%d)", i),
		Language: lang,
		Status:   history.StatusSuccess,
	}
}

func TestAppendEvictsOldestAtCapacity(t *testing.T) {
	s := history.NewStore(0) // default capacity

	for i := 0; i < history.DefaultCapacity+1; i++ {
		s.Append(record(i, language.Python))
	}

	all := s.All()
	require.Len(t, all, history.DefaultCapacity)
	assert.Equal(t, "rec-1", all[0].ID, "oldest record must be evicted first")
	assert.Equal(t, fmt.Sprintf("rec-%d", history.DefaultCapacity), all[len(all)-1].ID)
}

func TestOrderPreserved(t *testing.T) {
	s := history.NewStore(10)
	for i := 0; i < 5; i++ {
		s.Append(record(i, language.JavaScript))
	}

	all := s.All()
	for i, rec := range all {
		assert.Equal(t, fmt.Sprintf("rec-%d", i), rec.ID)
	}
}

func TestByLanguageIsOrderedSubset(t *testing.T) {
	s := history.NewStore(20)
	for i := 0; i < 9; i++ {
		lang := language.Python
		if i%3 == 0 {
			lang = language.CPP
		}
		s.Append(record(i, lang))
	}

	cpp := s.ByLanguage(language.CPP)
	require.Len(t, cpp, 3)
	assert.Equal(t, []string{"rec-0", "rec-3", "rec-6"}, []string{cpp[0].ID, cpp[1].ID, cpp[2].ID})

	// Union of per-language views matches the full log.
	total := len(s.ByLanguage(language.Python)) + len(cpp) + len(s.ByLanguage(language.JavaScript))
	assert.Equal(t, s.Len(), total)
}

func TestClear(t *testing.T) {
	s := history.NewStore(10)
	s.Append(record(0, language.Python))
	s.Append(record(1, language.CPP))

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.All())
}

func TestClearLanguageKeepsOthers(t *testing.T) {
	s := history.NewStore(10)
	s.Append(record(0, language.Python))
	s.Append(record(1, language.CPP))
	s.Append(record(2, language.Python))

	s.ClearLanguage(language.Python)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, language.CPP, all[0].Language)
	assert.Empty(t, s.ByLanguage(language.Python))
}

func TestAllReturnsCopy(t *testing.T) {
	s := history.NewStore(10)
	s.Append(record(0, language.Python))

	all := s.All()
	all[0].ID = "mutated"

	assert.Equal(t, "rec-0", s.All()[0].ID)
}

func TestCustomCapacity(t *testing.T) {
	s := history.NewStore(3)
	for i := 0; i < 5; i++ {
		s.Append(record(i, language.Python))
	}
	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "rec-2", all[0].ID)
}
