// Package sse decodes text/event-stream bodies as sent by the Gemini and
// OpenAI streaming endpoints.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const maxLineSize = 1 << 20

// ErrStop can be returned from a callback to end reading without error.
var ErrStop = errors.New("sse: stop")

// Event is one dispatched server-sent event.
type Event struct {
	Name string // "event:" field, empty for the default message event
	Data string // "data:" lines joined with "\n"
}

// Read decodes events from r and calls fn for each one, in order.
// It returns nil at EOF or when fn returns ErrStop, and the first other
// error from the reader or fn.
func Read(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var ev Event
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			ev = Event{}
			return nil
		}
		ev.Data = strings.Join(data, "\n")
		err := fn(ev)
		ev = Event{}
		data = data[:0]
		return err
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if err := dispatch(); err != nil {
				return stopped(err)
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return stopped(dispatch())
}

func stopped(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
