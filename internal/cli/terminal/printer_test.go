package terminal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinterWritesOnlyNewContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Start()
	p.Update("Hel")
	p.Update("Hello")
	p.Update("Hello")
	p.End()

	assert.Equal(t, "… 等待 AI 回复\n[ai] Hello\n", buf.String())
}

func TestPrinterRewritesReplacedContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Start()
	p.Update("partial")
	p.Update("Error: Failed to get AI response: timeout")
	p.End()

	assert.Equal(t, "… 等待 AI 回复\n[ai] partial\n[ai] Error: Failed to get AI response: timeout\n", buf.String())
}

func TestPrinterEndWithoutContent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Start()
	p.End()
	p.End()

	assert.Equal(t, "… 等待 AI 回复\n", buf.String())
}
