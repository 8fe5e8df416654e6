package fileloader

import "errors"

var (
	// ErrMalformed 文件内容不符合格式
	ErrMalformed = errors.New("fileloader: malformed input")
	// ErrUnsupported 格式合法但未实现
	ErrUnsupported = errors.New("fileloader: unsupported format")
)
