package sqlutil

// DefaultChunkSize is the number of id values bound into a single IN clause.
// MySQL tolerates far larger statements, but 500 keeps parameter counts well
// under prepared-statement limits across deployments.
const DefaultChunkSize = 500

// ChunkInt64 splits ids into slices of at most size elements. Every id
// appears in exactly one chunk, in the original order. A size of zero or
// less falls back to DefaultChunkSize.
func ChunkInt64(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// ChunkStrings splits string keys the same way ChunkInt64 splits ids.
func ChunkStrings(keys []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}

// ChunkValues splits already-converted query arguments into slices of at
// most size elements.
func ChunkValues(values []interface{}, size int) [][]interface{} {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]interface{}
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// Int64Args converts an id chunk into the []interface{} shape QueryContext
// and ExecContext expect.
func Int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// StringArgs converts a key chunk into query arguments.
func StringArgs(keys []string) []interface{} {
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return args
}
