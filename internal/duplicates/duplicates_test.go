package duplicates

import (
	"testing"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, name, artist, isrc string) *models.UnifiedItem {
	return &models.UnifiedItem{
		ID:    id,
		Track: &models.Track{ID: "t-" + id, Name: name, Artist: artist, ISRC: isrc},
	}
}

func ids(g Group) []string {
	out := make([]string, len(g.Items))
	for i, it := range g.Items {
		out[i] = it.ID
	}
	return out
}

func TestKey(t *testing.T) {
	tests := []struct {
		name, artist string
		want         string
	}{
		{"Hello", "Adele", "helloadele"},
		{"  Hello,  World! ", "The  Band", "hello world the band"},
		{"Café del Mar", "Energy 52", "cafe del marenergy 52"},
		{"ROCK", "Björk", "rockbjork"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.name, tt.artist))
		})
	}
}

func TestFind(t *testing.T) {
	t.Run("Name And Artist", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			item("1", "Hello", "Adele", ""),
			item("2", "Other", "Someone", ""),
			item("3", "hello!", "ADELE", ""),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, ReasonNameArtist, groups[0].Reason)
		assert.Equal(t, []string{"1", "3"}, ids(groups[0]))
	})

	t.Run("ISRC Only", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			item("1", "Hello", "Adele", "GBBKS1500214"),
			item("2", "Hello (Live)", "Adele", "GBBKS1500214"),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, ReasonISRC, groups[0].Reason)
		assert.Equal(t, []string{"1", "2"}, ids(groups[0]))
	})

	t.Run("ISRC Group Covered By Name Group", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			item("1", "Hello", "Adele", "GBBKS1500214"),
			item("2", "Hello", "Adele", "GBBKS1500214"),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, ReasonNameArtist, groups[0].Reason)
	})

	t.Run("ISRC Group Overlapping Name Group Is Dropped", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			item("1", "Hello", "Adele", "GBBKS1500214"),
			item("2", "hello!", "ADELE", "GBBKS1500214"),
			item("3", "Hello (Live)", "Adele", "GBBKS1500214"),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, ReasonNameArtist, groups[0].Reason)
		assert.Equal(t, []string{"1", "2"}, ids(groups[0]))
	})

	t.Run("Each Item Reported Once", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			item("1", "Hello", "Adele", "GBBKS1500214"),
			item("2", "Hello", "Adele", ""),
			item("3", "Hello - 2015", "Adele", "GBBKS1500214"),
			item("4", "Skyfall", "Adele", "GBBKS1200164"),
			item("5", "Skyfall (Remastered)", "Adele", "GBBKS1200164"),
		})

		seen := make(map[string]int)
		for _, g := range groups {
			for _, id := range ids(g) {
				seen[id]++
			}
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "item %s", id)
		}

		require.Len(t, groups, 2)
		assert.Equal(t, []string{"1", "2"}, ids(groups[0]))
		assert.Equal(t, ReasonISRC, groups[1].Reason)
		assert.Equal(t, []string{"4", "5"}, ids(groups[1]))
	})

	t.Run("No Duplicates", func(t *testing.T) {
		assert.Empty(t, Find([]*models.UnifiedItem{
			item("1", "A", "X", ""),
			item("2", "B", "X", ""),
		}))
		assert.Empty(t, Find(nil))
	})

	t.Run("Skips Items Without Tracks", func(t *testing.T) {
		groups := Find([]*models.UnifiedItem{
			{ID: "orphan"},
			nil,
			item("1", "A", "X", ""),
			item("2", "A", "X", ""),
		})
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"1", "2"}, ids(groups[0]))
	})

	t.Run("Does Not Modify Input", func(t *testing.T) {
		in := []*models.UnifiedItem{item("1", "A", "X", "I"), item("2", "A", "X", "I")}
		before := *in[0].Track
		Find(in)
		assert.Equal(t, before, *in[0].Track)
		assert.Equal(t, "1", in[0].ID)
	})
}
