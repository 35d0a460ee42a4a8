package routing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
)

func TestCardClassifier(t *testing.T) {
	c := CardClassifier()

	tests := []struct {
		name string
		tags []string
		want string
	}{
		{"promo tag", []string{"prerelease", "universesbeyond"}, domain.CategoryUniversesBeyond},
		{"set type tag", []string{"set_type:universes_beyond"}, domain.CategoryUniversesBeyond},
		{"expansion", []string{"set_type:expansion"}, domain.CategoryRegular},
		{"no tags", nil, domain.CategoryRegular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(domain.Item{Tags: tt.tags}))
		})
	}
}

func TestPartitionedRouting(t *testing.T) {
	table := Partitioned(domain.CategoryUniversesBeyond, "200", domain.CategoryRegular, "100")
	c := CardClassifier()

	ub := domain.Item{ID: "a", Tags: []string{"universesbeyond"}}
	ub.Category = c.Classify(ub)
	reg := domain.Item{ID: "b"}
	reg.Category = c.Classify(reg)

	route, ok := table.Route(ub)
	require.True(t, ok)
	assert.Equal(t, "200", route.Destination)
	assert.Equal(t, domain.CategoryUniversesBeyond, route.Name)

	route, ok = table.Route(reg)
	require.True(t, ok)
	assert.Equal(t, "100", route.Destination)
}

func TestSingleRoutesEverything(t *testing.T) {
	table := Single("spoilers", "100")
	for _, item := range []domain.Item{
		{Category: domain.CategoryUniversesBeyond},
		{Category: domain.CategoryRegular},
		{Link: "https://example.com"},
	} {
		route, ok := table.Route(item)
		require.True(t, ok)
		assert.Equal(t, "100", route.Destination)
	}
}

func TestPrefixRoutingDropsUnmatched(t *testing.T) {
	table := Table{Rules: []Rule{
		{Name: "announcements", Prefix: "/en/news/announcements/", Destination: "1"},
		{Name: "feature", Prefix: "/en/news/feature/", Destination: "2"},
	}}

	route, ok := table.Route(domain.Item{Link: "/en/news/feature/some-article"})
	require.True(t, ok)
	assert.Equal(t, "feature", route.Name)
	assert.Equal(t, "2", route.Destination)

	_, ok = table.Route(domain.Item{Link: "/en/news/unknown/x"})
	assert.False(t, ok)

	assert.Len(t, table.Partitions(), 2)
}

func TestValidateRequired(t *testing.T) {
	err := Single("spoilers", "").Validate()
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "routes.spoilers", cfgErr.Field)

	// An empty optional destination is skipped at runtime, not rejected.
	assert.NoError(t, Partitioned(domain.CategoryUniversesBeyond, "", domain.CategoryRegular, "1").Validate())
}

func writeRoutes(t *testing.T, path, body string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFileRouterReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	base := time.Now().Add(-time.Hour)
	writeRoutes(t, path, "routes:\n  - name: all\n    category: \"*\"\n    destination: \"1\"\n", base)

	r, err := NewFileRouter(path, nil)
	require.NoError(t, err)

	route, ok := r.Route(domain.Item{})
	require.True(t, ok)
	assert.Equal(t, "1", route.Destination)

	writeRoutes(t, path, "routes:\n  - name: all\n    category: \"*\"\n    destination: \"2\"\n", base.Add(time.Minute))
	route, _ = r.Route(domain.Item{})
	assert.Equal(t, "2", route.Destination)

	// A broken edit keeps the last good table.
	writeRoutes(t, path, "routes: [:::", base.Add(2*time.Minute))
	route, _ = r.Route(domain.Item{})
	assert.Equal(t, "2", route.Destination)

	require.NoError(t, os.Remove(path))
	route, _ = r.Route(domain.Item{})
	assert.Equal(t, "2", route.Destination)
}

func TestNewFileRouterRejectsMissingRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	writeRoutes(t, path, "routes:\n  - name: all\n    category: \"*\"\n    required: true\n", time.Now())

	_, err := NewFileRouter(path, nil)
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewFileRouter(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorAs(t, err, &cfgErr)
}
