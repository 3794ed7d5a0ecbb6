package clickhouse

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildDSNNative(t *testing.T) {
	cfg := &ClientConfig{
		Host:        "ch.internal",
		Port:        9000,
		Database:    "quantshield",
		User:        "writer",
		Password:    "secret",
		DialTimeout: 5 * time.Second,
	}
	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	require.Equal(t, "clickhouse", u.Scheme)
	require.Equal(t, "ch.internal:9000", u.Host)
	require.Equal(t, "/quantshield", u.Path)
	require.Equal(t, "writer", u.User.Username())
	require.Equal(t, "5s", u.Query().Get("dial_timeout"))
}

func TestBuildDSNHTTPAsync(t *testing.T) {
	cfg := &ClientConfig{
		Host:         "localhost",
		Port:         8123,
		Database:     "quantshield",
		UseHTTP:      true,
		AsyncInsert:  true,
		WaitForAsync: true,
		MaxExecTime:  30 * time.Second,
	}
	u, err := url.Parse(buildDSN(cfg))
	require.NoError(t, err)
	require.Equal(t, "clickhouse+http", u.Scheme)
	q := u.Query()
	require.Equal(t, "1", q.Get("async_insert"))
	require.Equal(t, "1", q.Get("wait_for_async_insert"))
	require.Equal(t, "30", q.Get("max_execution_time"))
}
