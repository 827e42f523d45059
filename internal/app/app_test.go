package app_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openrice-crawler/internal/app"
	"github.com/JakeFAU/openrice-crawler/internal/config"
	"github.com/JakeFAU/openrice-crawler/internal/runner"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Frontier.CheckpointPath = filepath.Join(dir, "url.txt")
	cfg.Frontier.BoundaryPath = filepath.Join(dir, "last_landmark.txt")
	cfg.Output.Dir = filepath.Join(dir, "output")
	return cfg
}

func TestNewAppWiresServices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := app.NewApp(ctx, cfg, app.Options{In: strings.NewReader(""), Out: &bytes.Buffer{}})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close(ctx)) })

	assert.Equal(t, cfg, a.Config())
	assert.NotNil(t, a.Logger())
	assert.Equal(t, cfg.Frontier.CheckpointPath, a.Frontier().Path())

	ctrl, err := a.Controller()
	require.NoError(t, err)
	r, urls, err := ctrl.Generate(ctx, runner.Options{Start: 10, StartSet: true, Count: 3, CountSet: true})
	require.NoError(t, err)
	assert.Equal(t, 13, r.Next())
	assert.Len(t, urls, 3)

	next, ok, err := a.Boundary().ReadBoundary(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 13, next)
}

func TestNewAppGCSMirror(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Output.GCSBucket = "crawls"

	calls := 0
	_, err := app.NewApp(ctx, cfg, app.Options{
		NewStorageClient: func(context.Context) (*storage.Client, error) {
			calls++
			return nil, errors.New("no credentials")
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init gcs client")
	assert.Equal(t, 1, calls)
}

func TestNewAppWithoutBucketSkipsGCS(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := app.NewApp(ctx, cfg, app.Options{
		NewStorageClient: func(context.Context) (*storage.Client, error) {
			t.Fatal("storage client must not be created without a bucket")
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.NoError(t, a.Close(ctx))
}

func TestStartMetricsAndClose(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Metrics.ListenAddr = "127.0.0.1:0"

	a, err := app.NewApp(ctx, cfg, app.Options{})
	require.NoError(t, err)
	a.StartMetrics()
	a.StartMetrics()
	assert.NoError(t, a.Close(ctx))
	assert.NoError(t, a.Close(ctx))
}

func TestNewAppRejectsMissingCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Frontier.CheckpointPath = ""

	_, err := app.NewApp(context.Background(), cfg, app.Options{})
	assert.ErrorContains(t, err, "frontier")
}
