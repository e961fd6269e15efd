package loghub

import "time"

// Level is a LogEntry's source marker, per spec.md §6.
type Level string

const (
	LevelStdout Level = "STDOUT"
	LevelStderr Level = "STDERR"
	LevelSystem Level = "SYSTEM"
)

// LogEntry is spec.md §3's LogEntry: {line_number, timestamp, level, content}.
type LogEntry struct {
	LineNumber int64
	Timestamp  time.Time
	Level      Level
	Content    string
}
