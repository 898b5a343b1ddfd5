package membership

import (
	"bytes"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogOutput returns an io.Writer suitable for memberlist.Config.LogOutput.
// Lines are logged to l at the level memberlist tagged them with.
func NewLogOutput(l log.Logger) io.Writer {
	return &memberListOutputLogger{logger: l}
}

// memberListOutputLogger will do best-effort classification of the logging
// level that memberlist uses and use the corresponding level when logging
// with logger. If classification fails, debug level is used as a fallback.
type memberListOutputLogger struct {
	logger log.Logger
}

var _ io.Writer = (*memberListOutputLogger)(nil)

var (
	tagError = []byte("[ERR]")
	tagWarn  = []byte("[WARN]")
	tagInfo  = []byte("[INFO]")
	tagDebug = []byte("[DEBUG]")

	memberlistPrefix = []byte("memberlist: ")
)

func (m *memberListOutputLogger) Write(p []byte) (int, error) {
	var (
		lvl  = level.Debug
		line = p
	)

	for _, tag := range []struct {
		tag []byte
		lvl func(log.Logger) log.Logger
	}{
		{tagError, level.Error},
		{tagWarn, level.Warn},
		{tagInfo, level.Info},
		{tagDebug, level.Debug},
	} {
		if i := bytes.Index(line, tag.tag); i >= 0 {
			lvl = tag.lvl
			line = line[i+len(tag.tag):]
			break
		}
	}

	line = bytes.TrimSpace(line)
	line = bytes.TrimPrefix(line, memberlistPrefix)

	if err := lvl(m.logger).Log("msg", string(line)); err != nil {
		return 0, err
	}
	return len(p), nil
}
