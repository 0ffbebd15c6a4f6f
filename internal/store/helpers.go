package store

import (
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringsToArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

// encodeMRO packs an MRO for the classes.mro column. A nil MRO stays NULL.
func encodeMRO(mro []string) ([]byte, error) {
	if mro == nil {
		return nil, nil
	}
	b, err := msgpack.Marshal(mro)
	if err != nil {
		return nil, fmt.Errorf("encode mro: %w", err)
	}
	return b, nil
}

func decodeMRO(b []byte) ([]string, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var mro []string
	if err := msgpack.Unmarshal(b, &mro); err != nil {
		return nil, fmt.Errorf("decode mro: %w", err)
	}
	return mro, nil
}

// prefixed qualifies every column of a column list with a table alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
