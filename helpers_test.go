package dynfield

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var allBackends = []Backend{BackendMemory, BackendBolt, BackendSQLite}

func setup(t testing.TB, backend Backend) *DB {
	t.Helper()
	var path string
	if backend != BackendMemory {
		path = filepath.Join(t.TempDir(), "fields_"+string(backend)+".db")
	}
	db, err := Open(path, Options{
		Backend:   backend,
		IsTesting: true,
		Verbose:   true,
		Logger:    testLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func forEachBackend(t *testing.T, f func(t *testing.T, db *DB)) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			f(t, setup(t, backend))
		})
	}
}

func testLogger(t testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type logWriter struct{ t testing.TB }

func (c *logWriter) Write(buf []byte) (int, error) {
	msg := string(buf)
	origLen := len(msg)
	msg = strings.TrimSuffix(msg, "\n")
	c.t.Log(msg)
	return origLen, nil
}

type (
	Point struct {
		X int `msgpack:"x"`
		Y int `msgpack:"y"`
	}

	Profile struct {
		Owner UID               `msgpack:"o"`
		Name  string            `msgpack:"n"`
		Tags  map[string]string `msgpack:"t"`
		Path  []Point           `msgpack:"p"`
	}

	Counter struct {
		ID    UID `msgpack:"id"`
		Count int `msgpack:"c"`
	}

	Gadget struct {
		ID   UID    `msgpack:"id"`
		Kind string `msgpack:"k"`
	}
)

func (c *Counter) ObjectUID() *UID { return &c.ID }
func (g *Gadget) ObjectUID() *UID  { return &g.ID }

func newCounter(n int) *Counter {
	return &Counter{ID: NewUID(), Count: n}
}

func incr(v *int) error {
	*v++
	return nil
}
