package util

import (
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// ANSI 颜色
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var palette = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"cyan":   ColorCyan,
}

// ColorByName 接受 "blue" 或 "ColorBlue"，未知名称返回 ColorReset
func ColorByName(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, "Color"))
	if c, ok := palette[key]; ok {
		return c
	}
	return ColorReset
}

// PrintBanner 输出单色 ASCII banner；subtitle 非空时追加一行（版本信息等）
func PrintBanner(w io.Writer, text, subtitle, color string) {
	ansi := ColorByName(color)
	var b strings.Builder
	for _, row := range figure.NewFigure(text, "", true).Slicify() {
		b.WriteString(ansi + row + ColorReset + "\n")
	}
	if subtitle != "" {
		b.WriteString(ansi + subtitle + ColorReset + "\n")
	}
	_, _ = io.WriteString(w, b.String())
}

