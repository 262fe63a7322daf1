package tui

import (
	"os"
	"strings"
	"sync"
)

// Some fonts render box and arrow glyphs poorly; SPRINTDESK_TUI_GLYPHS=ascii switches to
// plain ASCII affordances.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

func applyGlyphPreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SPRINTDESK_TUI_GLYPHS"))) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	defer glyphsMu.RUnlock()
	return currentGlyphs
}

func glyphCheckbox(done bool) string {
	if glyphs() == glyphSetASCII {
		if done {
			return "[x]"
		}
		return "[ ]"
	}
	if done {
		return "☑"
	}
	return "☐"
}

func glyphGrab() string {
	if glyphs() == glyphSetASCII {
		return "*"
	}
	return "✥"
}

func glyphArrow() string {
	if glyphs() == glyphSetASCII {
		return "->"
	}
	return "→"
}

func glyphBlocked() string {
	if glyphs() == glyphSetASCII {
		return "!"
	}
	return "⛔"
}

func glyphHRule() string {
	if glyphs() == glyphSetASCII {
		return "-"
	}
	return "─"
}

func glyphDot(connected bool) string {
	if glyphs() == glyphSetASCII {
		if connected {
			return "(o)"
		}
		return "( )"
	}
	if connected {
		return "●"
	}
	return "○"
}
