/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/logger"
)

// logf reports request and state events when --verbose is set. Failures go
// through logger directly and are always shown.
func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	logger.Infof("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(prefix, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(prefix))
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"%s/\">%s</a></body></html>", prefix, html.EscapeString(body)))

	return htmlBody.String()
}
