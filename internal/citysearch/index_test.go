package citysearch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const gazetteerCSV = `name,country,population
New York,US,8804190
Newark,US,311549
York,GB,153717
New Orleans,US,383997
Saint-Denis,FR,112091
Denison,US,24479
Paris,FR,2165423
Paris,US,25171
Le Havre,FR,170147
`

func buildIndex(t *testing.T) *Index {
	t.Helper()
	index, err := parseCSV(strings.NewReader(gazetteerCSV))
	require.NoError(t, err)
	return index
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestQueryRanksFullPrefixBeforeWordPrefix(t *testing.T) {
	index := buildIndex(t)

	results, err := index.Query("new", "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"New York", "New Orleans", "Newark"}, names(results))

	// "york" matches York outright and New York on its second word. Larger
	// population does not beat the full-prefix match.
	results, err = index.Query("york", "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"York", "New York"}, names(results))
}

func TestQueryMatchesWordsAfterSeparators(t *testing.T) {
	index := buildIndex(t)

	results, err := index.Query("denis", "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"Denison", "Saint-Denis"}, names(results))
}

func TestQueryScopesToCountry(t *testing.T) {
	index := buildIndex(t)

	results, err := index.Query("paris", "fr", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "FR", results[0].Country)

	results, err = index.Query("paris", "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"Paris", "Paris"}, names(results))
	require.Equal(t, "FR", results[0].Country)
	require.Equal(t, "US", results[1].Country)

	results, err = index.Query("paris", "DE", 10)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueryHonorsLimit(t *testing.T) {
	index := buildIndex(t)

	results, err := index.Query("new", "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"New York", "New Orleans"}, names(results))

	results, err = index.Query("new", "", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	index := buildIndex(t)

	_, err := index.Query("   ", "", 10)
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestParseCSVSkipsHeaderAndBadRows(t *testing.T) {
	index, err := parseCSV(strings.NewReader("name,country,population\nTokyo,jp,37000000\n,XX,1\nOsaka,JP,notanumber\n"))
	require.NoError(t, err)

	results, err := index.Query("o", "JP", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"Osaka"}, names(results))

	results, err = index.Query("tok", "JP", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"Tokyo"}, names(results))
	require.EqualValues(t, 37000000, results[0].Population)
}
