package types

// LogLevel is the severity of a log line forwarded by the engine.
type LogLevel uint8

const (
	LogPanic LogLevel = iota
	LogFatal
	LogError
	LogWarn
	LogInfo
	LogDebug
	LogTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogPanic:
		return "panic"
	case LogFatal:
		return "fatal"
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "trace"
	}
}
