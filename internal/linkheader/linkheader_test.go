package linkheader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	value := `<https://web.archive.org/web/20240115120000/https://example.com/>; rel="memento"; datetime="Mon, 15 Jan 2024 12:00:00 GMT", <https://web.archive.org/web/20240115120000/https://example.com/original>; rel="original"`

	links := Parse(value)
	require.Len(t, links, 2)
	require.Equal(t, "https://web.archive.org/web/20240115120000/https://example.com/", links[0].URL)
	require.Equal(t, "memento", links[0].Params["rel"])
	require.Equal(t, "original", links[1].Params["rel"])
}

func TestParseEmpty(t *testing.T) {
	require.Nil(t, Parse(""))
}

func TestByRel(t *testing.T) {
	links := []Link{
		{URL: "https://example.com/a", Params: map[string]string{"rel": "original"}},
		{URL: "https://example.com/b", Params: map[string]string{}},
	}
	byRel := ByRel(links)
	require.Equal(t, "https://example.com/a", byRel["original"].URL)
	require.Equal(t, "https://example.com/b", byRel["https://example.com/b"].URL)
}
