package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutorError(t *testing.T) {
	root := errors.New("connection refused")
	err := &ExecutorError{
		PackageName: "@tpmjs/tools-sprites-get",
		ToolName:    "spritesGetTool",
		Err:         root,
	}

	require.Equal(
		t,
		"executor call failed for @tpmjs/tools-sprites-get/spritesGetTool: connection refused",
		err.Error(),
	)
	require.ErrorIs(t, err, root)
	require.True(t, err.IsGatewayError())
}

func TestSeedError(t *testing.T) {
	root := errors.New("no such file")
	err := &SeedError{
		Path: "/etc/tpmjs/catalog.yaml",
		Err:  root,
	}

	require.Equal(t, "failed to load catalog seed /etc/tpmjs/catalog.yaml: no such file", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsGatewayError())
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrCallTimeout,
		ErrRelayClosed,
		ErrCollectionNotFound,
		ErrToolNotFound,
		ErrBridgeNotConnected,
		ErrBridgeStale,
		ErrConnectionNotFound,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			require.NotErrorIs(t, a, b)
		}
	}
}
