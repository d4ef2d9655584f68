package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunBenchMatchesSeededCity(t *testing.T) {
	err := runBench(context.Background(), zap.NewNop(), 200, "Tokyo", 42)
	require.NoError(t, err)
}

func TestRunBuildIndexReachesReadable(t *testing.T) {
	err := runBuildIndex(context.Background(), zap.NewNop(), 150, "byCity", 25)
	require.NoError(t, err)
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd(zap.NewNop())
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["bench"])
	require.True(t, names["build-index"])
}
