package core

// Logger is any logging service.
// args may contain errors, map[string]interface{} extras and the acting admin (see LogPerson).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson is implemented by values identifying who triggered a logged event.
type LogPerson interface {
	LogPerson() (id, name, email string)
}
