package pipeline

import "github.com/rs/zerolog/log"

// Notifier shows short-lived messages to the user
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) {
	f(msg)
}

// LogNotifier prints notices through the logger
type LogNotifier struct{}

func (LogNotifier) Notify(msg string) {
	log.Info().Str("notice", msg).Msg("Notice")
}
