package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "taskpanel/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	require.Error(t, err)
}

func TestStoresAppendAndRecent(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "audit.db")
			st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			for i := 0; i < 5; i++ {
				require.NoError(t, st.AppendAudit(ctx, AuditEntry{
					At:      base.Add(time.Duration(i) * time.Minute),
					ActorID: 42,
					Action:  "task.run",
					Target:  fmt.Sprintf("task:%d", i),
					OK:      i%2 == 0,
					TookMS:  int64(i),
				}))
			}

			got, err := st.RecentAudit(ctx, 3)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "task:4", got[0].Target)
			assert.Equal(t, "task:3", got[1].Target)
			assert.Equal(t, "task:2", got[2].Target)
			assert.True(t, got[0].OK)
			assert.False(t, got[1].OK)
			assert.True(t, got[0].At.Equal(base.Add(4*time.Minute)))

			all, err := st.RecentAudit(ctx, 50)
			require.NoError(t, err)
			assert.Len(t, all, 5)

			none, err := st.RecentAudit(ctx, 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "panel.json")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Action: "file.save", OK: true}))

	f, err := os.OpenFile(filepath.Join(dir, "panel.audit.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, st.AppendAudit(ctx, AuditEntry{Action: "file.delete"}))

	got, err := st.RecentAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "file.delete", got[0].Action)
	assert.Equal(t, "file.save", got[1].Action)
}
