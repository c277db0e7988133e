package store

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatline/pkg/logger"
	"chatline/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
)

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = fmt.Errorf("not found")

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// --- users ---

func userNameKey(name string) []byte { return []byte("user:name:" + name) }

// CreateUser stores a new user record. It fails when the name is taken.
func CreateUser(u models.StoredUser) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if _, closer, err := db.Get(userNameKey(u.Name)); err == nil {
		_ = closer.Close()
		return fmt.Errorf("user %q already exists", u.Name)
	}
	data, err := marshalUser(u)
	if err != nil {
		return err
	}
	if err := db.Set(userNameKey(u.Name), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUserByName returns the stored record for name, or ErrNotFound.
func GetUserByName(name string) (models.StoredUser, error) {
	var u models.StoredUser
	if db == nil {
		return u, fmt.Errorf("pebble not opened; call store.Open first")
	}
	val, closer, err := db.Get(userNameKey(name))
	if err != nil {
		if err == pebble.ErrNotFound {
			return u, ErrNotFound
		}
		return u, err
	}
	defer func() { _ = closer.Close() }()
	return unmarshalUser(val)
}

// ListUsers returns every registered user's public record, name-sorted
// for a stable roster order.
func ListUsers() ([]models.User, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	it, err := db.NewIter(prefixIterOptions([]byte("user:name:")))
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	out := make([]models.User, 0, 16)
	for it.First(); it.Valid(); it.Next() {
		u, err := unmarshalUser(it.Value())
		if err != nil {
			continue
		}
		out = append(out, u.Public())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- direct-message history ---

// ConvoID returns the canonical conversation id for a user pair. Both
// sides of a conversation map onto one key stream regardless of order.
func ConvoID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

func convoPrefix(a, b string) []byte {
	return []byte("convo:" + ConvoID(a, b) + ":msg:")
}

// SaveMessage appends a direct message to the pair's conversation. Keys
// carry a sortable timestamp prefix so iteration yields append order.
func SaveMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if m.TS == 0 {
		m.TS = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := fmt.Sprintf("convo:%s:msg:%020d-%06d", ConvoID(m.From, m.To), m.TS, s)
	data, err := marshalMessage(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// ListMessages returns the full ordered history for a user pair.
func ListMessages(a, b string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	it, err := db.NewIter(prefixIterOptions(convoPrefix(a, b)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	out := make([]models.Message, 0, 64)
	for it.First(); it.Valid(); it.Next() {
		m, err := unmarshalMessage(it.Value())
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// PurgeMessagesBefore deletes every direct message older than cutoff
// (unix ns) and returns the number of deleted entries. The timestamp is
// parsed from the key so no value decoding is needed.
func PurgeMessagesBefore(cutoff int64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	it, err := db.NewIter(prefixIterOptions([]byte("convo:")))
	if err != nil {
		return 0, err
	}
	var stale [][]byte
	for it.First(); it.Valid(); it.Next() {
		ts, ok := keyTimestamp(string(it.Key()))
		if ok && ts < cutoff {
			k := append([]byte(nil), it.Key()...)
			stale = append(stale, k)
		}
	}
	if err := it.Close(); err != nil {
		return 0, err
	}
	for _, k := range stale {
		if err := db.Delete(k, pebble.Sync); err != nil {
			return 0, fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}
	return len(stale), nil
}

// keyTimestamp extracts the padded nanosecond timestamp from a message
// key of the form convo:<a>:<b>:msg:<ts>-<seq>.
func keyTimestamp(key string) (int64, bool) {
	idx := strings.LastIndex(key, ":msg:")
	if idx < 0 {
		return 0, false
	}
	rest := key[idx+len(":msg:"):]
	dash := strings.IndexByte(rest, '-')
	if dash < 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(rest[:dash], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// DiskUsage returns the total on-disk size of the DB directory in bytes,
// best-effort, for telemetry.
func DiskUsage() uint64 {
	if dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	}
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
