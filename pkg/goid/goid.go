package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GetGID 当前 goroutine 的 ID（日志 goid 字段），解析失败返回 0
func GetGID() uint64 {
	var buf [64]byte
	// 第一行形如 "goroutine 123 [running]:"
	line := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], goroutinePrefix)
	if i := bytes.IndexByte(line, ' '); i > 0 {
		line = line[:i]
	}
	id, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
