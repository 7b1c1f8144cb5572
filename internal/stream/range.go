package stream

import (
	"strconv"
	"strings"
)

// ChunkFallback bounds the window served for an open-ended range request.
// Clients that send "bytes=0-" get at most this much per request instead of
// the whole file.
const ChunkFallback int64 = 10 << 20 // 10 MiB

// byteRange is a parsed, validated byte window. Both bounds are inclusive.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseRange parses a "bytes=<start>-[<end>]" header against a known total
// size. It returns ok=false for ranges that must be answered with 416: a
// malformed or missing start, or start beyond the last byte.
//
// A malformed or absent end is treated as an open-ended range and capped at
// ChunkFallback; the end is always clamped to size-1. Multi-range and suffix
// ("bytes=-500") forms are not supported and yield ok=false.
func parseRange(header string, size int64) (byteRange, bool) {
	spec := strings.TrimPrefix(header, "bytes=")
	if spec == header {
		return byteRange{}, false
	}

	startStr, endStr, _ := strings.Cut(spec, "-")
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, false
	}

	end := start + ChunkFallback
	if endStr = strings.TrimSpace(endStr); endStr != "" {
		if parsed, err := strconv.ParseInt(endStr, 10, 64); err == nil && parsed >= start {
			end = parsed
		}
	}
	if end > size-1 {
		end = size - 1
	}

	return byteRange{start: start, end: end}, true
}
