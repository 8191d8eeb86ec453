package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
	"github.com/stretchr/testify/require"
)

const seedYAML = `collections:
  - id: col-demo
    name: Demo
    owner_user_id: user-1
    executor:
      url: http://executor.local/run
      token: sekrit
    tools:
      - package: "@tpmjs/tools-sprites-get"
        tool: spritesGetTool
        description: fetch a sprite
        params:
          name: string
          frame: int
      - package: "@tpmjs/markdown"
        tool: renderTool
        input_schema:
          type: object
          properties:
            source:
              type: string
    bridge_tools:
      - server: chrome-devtools
        tool: screenshot
        description: capture the current tab
  - name: Unnamed IDs
    owner_user_id: user-2
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	mem, err := Load(writeSeed(t, seedYAML))
	require.NoError(t, err)

	col, err := mem.Collection(context.Background(), "col-demo")
	require.NoError(t, err)
	require.Equal(t, "Demo", col.Name)
	require.Equal(t, "user-1", col.OwnerUserID)
	require.Equal(t, ExecutorConfig{URL: "http://executor.local/run", Token: "sekrit"}, col.Executor)

	tools, err := mem.CollectionTools(context.Background(), "col-demo")
	require.NoError(t, err)
	require.Len(t, tools.Registry, 2)
	require.Len(t, tools.Bridge, 1)

	sprites := tools.Registry[0]
	require.Equal(t, "@tpmjs/tools-sprites-get", sprites.PackageName)
	require.Equal(t, "object", sprites.InputSchema["type"])
	props := sprites.InputSchema["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "string"}, props["name"])
	require.Equal(t, map[string]any{"type": "integer"}, props["frame"])

	markdown := tools.Registry[1]
	require.Equal(t, "object", markdown.InputSchema["type"])

	lookup, err := mem.Lookup(context.Background(), []string{"@tpmjs/markdown"}, "renderTool")
	require.NoError(t, err)
	require.Equal(t, "@tpmjs/markdown", lookup.PackageName)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

		var seedErr *errors.SeedError
		require.ErrorAs(t, err, &seedErr)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeSeed(t, "collections: [whoops"))

		var seedErr *errors.SeedError
		require.ErrorAs(t, err, &seedErr)
	})

	t.Run("tool entry without a package", func(t *testing.T) {
		_, err := Load(writeSeed(t, `collections:
  - name: Broken
    owner_user_id: user-1
    tools:
      - tool: nakedTool
`))
		require.Error(t, err)
	})
}
