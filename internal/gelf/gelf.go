// Package gelf ships zap JSON log entries to a Graylog input over UDP.
package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Writer converts each zap JSON line it receives into one GELF 1.1 message.
// It satisfies zapcore.WriteSyncer.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service
	}

	return &Writer{conn: conn, hostname: hostname, service: service}, nil
}

// syslog severities
var levels = map[string]int{
	"debug":  7,
	"info":   6,
	"warn":   4,
	"error":  3,
	"dpanic": 2,
	"panic":  2,
	"fatal":  2,
}

// Write never fails the log call; undeliverable messages are dropped.
func (w *Writer) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		payload, err := json.Marshal(w.convert([]byte(line)))
		if err != nil {
			continue
		}
		_, _ = w.conn.Write(payload)
	}
	return len(p), nil
}

func (w *Writer) convert(line []byte) map[string]any {
	msg := map[string]any{
		"version":  "1.1",
		"host":     w.hostname,
		"level":    6,
		"_service": w.service,
	}
	var entry map[string]any
	if err := json.Unmarshal(line, &entry); err != nil {
		msg["short_message"] = string(line)
		msg["timestamp"] = float64(time.Now().UnixNano()) / 1e9
		return msg
	}

	short, _ := entry["msg"].(string)
	if short == "" {
		short = "(empty)"
	}
	msg["short_message"] = short
	if lvl, ok := entry["level"].(string); ok {
		if n, ok := levels[lvl]; ok {
			msg["level"] = n
		}
	}
	if ts, ok := entry["ts"].(float64); ok {
		msg["timestamp"] = ts
	} else {
		msg["timestamp"] = float64(time.Now().UnixNano()) / 1e9
	}
	for k, v := range entry {
		switch k {
		case "msg", "level", "ts":
			continue
		case "id":
			k = "record_id"
		}
		msg["_"+k] = v
	}
	return msg
}

func (w *Writer) Sync() error {
	return nil
}

func (w *Writer) Close() error {
	return w.conn.Close()
}
