package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruel/insurdash/internal/dataset"
	"github.com/maruel/insurdash/internal/server/metrics"
)

func TestParseDotEnv(t *testing.T) {
	env, err := parseDotEnv("# comment\nHTTP=:9000\n\nexport LOG_LEVEL = debug\nDATASET=\"my data.csv\"\nQUOTED='x y'\nnoequal\n")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"HTTP":      ":9000",
		"LOG_LEVEL": "debug",
		"DATASET":   "my data.csv",
		"QUOTED":    "x y",
	}, env)

	_, err = parseDotEnv("A='unbalanced\n")
	assert.Error(t, err)
	_, err = parseDotEnv("A=\"bad\n")
	assert.Error(t, err)
}

func TestLoadDotEnv_Missing(t *testing.T) {
	env, err := loadDotEnv(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestWatchDataset(t *testing.T) {
	const header = "age,sex,bmi,children,smoker,region,charges\n"
	path := filepath.Join(t.TempDir(), "insurance.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"30,male,25,0,no,southwest,2000\n"), 0o600))
	store, err := dataset.Open(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- watchDataset(ctx, store, metrics.New()) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(header+"30,male,25,0,no,southwest,2000\n40,female,30,1,yes,northeast,9000\n"), 0o600))
	require.Eventually(t, func() bool { return store.Len() == 2 }, 5*time.Second, 20*time.Millisecond)

	// A file with no record is rejected and the snapshot kept.
	require.NoError(t, os.WriteFile(path, []byte(header), 0o600))
	time.Sleep(3 * reloadDelay)
	assert.Equal(t, 2, store.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchDataset did not return")
	}
}

func TestTrackHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insurance.csv")
	require.NoError(t, os.WriteFile(path, []byte("age,sex,bmi,children,smoker,region,charges\n30,male,25,0,no,southwest,2000\n"), 0o600))
	store, err := dataset.Open(path)
	require.NoError(t, err)
	repo, err := trackHistory(t.Context(), store, "Test", "test@example.com")
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			_, err := store.Append(dataset.Record{Age: 20 + i, Sex: "female", BMI: 22, Smoker: "no", Region: "northeast", Charges: 100})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	commits, err := repo.Log(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, commits, n+1)
	assert.Equal(t, "Import insurance.csv", commits[n].Message)
	// Newest first: the commit for record #k holds exactly k records.
	for i, c := range commits[:n] {
		k := n + 1 - i
		assert.True(t, strings.HasPrefix(c.Message, fmt.Sprintf("Add record #%d: ", k)), c.Message)
		data, err := repo.FileAt(t.Context(), c.Hash)
		require.NoError(t, err)
		rows, err := store.Codec().Read(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Len(t, rows, k, c.Message)
	}
}
