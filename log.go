package fileloader

import (
	"io"
	"log"
)

var logger = log.New(io.Discard, "[fileloader] ", log.LstdFlags)

// SetLogOutput 设置日志输出，传入 nil 关闭日志
func SetLogOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	logger.SetOutput(w)
}
