// Package sse reads and writes server-sent event streams.
package sse

import (
	"bufio"
	"strings"
)

// Event is one dispatched SSE record.
type Event struct {
	Name string
	Data string
}

// Parser accumulates SSE lines. Feed returns a completed event whenever a
// blank line terminates a record that carried data.
type Parser struct {
	name    string
	data    strings.Builder
	hasData bool
}

// Feed consumes one line (without its trailing newline).
func (p *Parser) Feed(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		return p.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.name = strings.TrimSpace(value)
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	}
	return Event{}, false
}

// Flush returns a final record that was not followed by a blank line.
func (p *Parser) Flush() (Event, bool) {
	return p.dispatch()
}

func (p *Parser) dispatch() (Event, bool) {
	if !p.hasData {
		p.name = ""
		return Event{}, false
	}
	ev := Event{Name: p.name, Data: p.data.String()}
	p.name = ""
	p.data.Reset()
	p.hasData = false
	return ev, true
}

// Events splits a fully buffered stream into events, including a trailing
// unterminated record. Lines are not length-limited.
func Events(raw string) []Event {
	r := bufio.NewReader(strings.NewReader(raw))

	var (
		p      Parser
		events []Event
	)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if ev, ok := p.Feed(strings.TrimSuffix(line, "\n")); ok {
				events = append(events, ev)
			}
		}
		if err != nil {
			break
		}
	}
	if ev, ok := p.Flush(); ok {
		events = append(events, ev)
	}
	return events
}
